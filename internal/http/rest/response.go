package rest

import (
	"encoding/json"
	"net/http"

	"github.com/bwise1/ride_pinpoint/util"
	"github.com/bwise1/ride_pinpoint/util/tracing"
	"go.uber.org/zap"
)

// ServerResponse is the envelope every JSON endpoint answers with.
type ServerResponse struct {
	Message    string      `json:"message"`
	Status     string      `json:"status"`
	StatusCode int         `json:"-"`
	RequestID  string      `json:"request_id,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Err        error       `json:"-"`
}

func respondWithError(err error, message, status string, tc *tracing.Context) *ServerResponse {
	resp := &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Err:        err,
	}
	if tc != nil {
		resp.RequestID = tc.RequestID
	}
	return resp
}

func writeJSONResponse(w http.ResponseWriter, content []byte, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(content); err != nil {
		zap.L().Debug("unable to write json response", zap.Error(err))
	}
}

func writeErrorResponse(w http.ResponseWriter, err error, status, message string) {
	data := ServerResponse{
		Message: message,
		Status:  status,
	}
	if err != nil {
		zap.L().Debug("request rejected", zap.String("status", status), zap.Error(err))
	}
	content, _ := json.Marshal(data)
	writeJSONResponse(w, content, util.StatusCode(status))
}
