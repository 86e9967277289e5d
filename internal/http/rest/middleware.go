package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwise1/ride_pinpoint/util/tracing"
	"github.com/bwise1/ride_pinpoint/util/values"
	"github.com/golang-jwt/jwt"
	"github.com/lucsky/cuid"
	"go.uber.org/zap"
)

var errTokenExpired = errors.New("token expired")

type TokenClaims struct {
	UserID string `json:"sub"`
	Type   string `json:"typ"`
	Exp    int64  `json:"exp"`
}

// RequestTracing handles the request tracing context
func RequestTracing(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestSource := r.Header.Get(values.HeaderRequestSource)
		if requestSource == "" {
			errM := errors.New("X-Request-Source is empty")

			writeErrorResponse(w, errM, values.BadRequestBody, errM.Error())
			return
		}

		requestID := r.Header.Get(values.HeaderRequestID)
		if requestID == "" {
			requestID = cuid.New()
		}

		tracingContext := tracing.Context{
			RequestID:     requestID,
			RequestSource: requestSource,
		}

		ctx = context.WithValue(ctx, values.ContextTracingKey, tracingContext)
		next.ServeHTTP(w, r.WithContext(ctx))
	}

	return http.HandlerFunc(fn)
}

// RequireLogin verifies the bearer access token and stores its subject as the
// user id. With no JWT secret configured every request passes anonymously.
func (api *API) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.Config.JwtSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		authorization := strings.Split(r.Header.Get("Authorization"), " ")
		if len(authorization) != 2 || authorization[0] != "Bearer" {
			writeErrorResponse(w, errors.New(values.NotAuthorised), values.NotAuthorised, "not-authorized")
			return
		}

		claims, err := api.verifyToken(authorization[1])
		if err != nil {
			if errors.Is(err, errTokenExpired) {
				writeErrorResponse(w, err, values.TokenExpired, "token-expired")
				return
			}
			writeErrorResponse(w, err, values.NotAuthorised, "invalid-token")
			return
		}

		ctx := context.WithValue(r.Context(), values.ContextUserIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (api *API) verifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(api.Config.JwtSecret), nil
	})

	// Specifically handle token expiration
	if ve, ok := err.(*jwt.ValidationError); ok {
		if ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, errTokenExpired
		}
	}

	if err != nil || !token.Valid {
		api.logger().Debug("error verifying token", zap.Error(err))
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}

	tokenType, _ := claims["typ"].(string)
	if tokenType != "access" {
		return nil, fmt.Errorf("invalid token type %q", tokenType)
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("invalid user id")
	}

	exp, _ := claims["exp"].(float64)
	return &TokenClaims{
		UserID: userID,
		Type:   tokenType,
		Exp:    int64(exp),
	}, nil
}

func (api *API) logger() *zap.Logger {
	if api.Logger == nil {
		return zap.NewNop()
	}
	return api.Logger
}
