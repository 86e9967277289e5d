package values

type contextKey string

const (
	ContextTracingKey contextKey = "tracing"
	ContextUserIDKey  contextKey = "user_id"
)

const (
	HeaderRequestSource = "X-Request-Source"
	HeaderRequestID     = "X-Request-Id"
)

// Response statuses.
const (
	Success        = "success"
	Created        = "created"
	Error          = "error"
	SystemErr      = "system_error"
	BadRequestBody = "bad_request"
	Unprocessable  = "unprocessable"
	NotAllowed     = "not_allowed"
	Conflict       = "conflict"
	NotFound       = "not_found"
	NotAuthorised  = "not_authorised"
	TokenExpired   = "token_expired"
	Gone           = "gone"
)
