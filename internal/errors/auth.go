package apierrors

// HTTP 400 Bad Request.
const (
	ErrInvalidRequest = "INVALID_REQUEST"
	ErrNotInitiated   = "NOT_INITIATED"
)

// HTTP 401 Unauthorized.
const (
	ErrInvalidCredentials = "INVALID_CREDENTIALS"
	ErrInvalidCode        = "INVALID_CODE"
	ErrWrongCode          = "WRONG_CODE"
	ErrSessionNotFound    = "SESSION_NOT_FOUND"
	ErrSessionExpired     = "SESSION_EXPIRED"
)

// HTTP 403 Forbidden.
const (
	ErrForbidden         = "FORBIDDEN"
	ErrChallengeLocked   = "CHALLENGE_LOCKED"
	ErrTwoFactorRequired = "TWO_FACTOR_REQUIRED"
)

// HTTP 404 Not Found.
const (
	ErrUserNotFound = "USER_NOT_FOUND"
)

// HTTP 409 Conflict.
const (
	ErrAlreadyEnabled  = "ALREADY_ENABLED"
	ErrAlreadyComplete = "ALREADY_COMPLETE"
)

// HTTP 429 Too Many Requests.
const (
	ErrRateLimited = "RATE_LIMITED"
)

// HTTP 500 Internal Server Error.
const (
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
	ErrEncoding       = "ENCODING_ERROR"
)

// Messages maps error codes to the human-readable text returned beside them.
// Codes without an entry fall back to the code itself.
var Messages = map[string]string{
	ErrInvalidRequest:     "The request is invalid.",
	ErrNotInitiated:       "Two-factor setup has not been initiated.",
	ErrInvalidCredentials: "Invalid email or password.",
	ErrInvalidCode:        "The submitted code is not valid.",
	ErrWrongCode:          "The submitted code is not valid.",
	ErrSessionNotFound:    "The session does not exist. Sign in again.",
	ErrSessionExpired:     "The session has expired. Sign in again.",
	ErrForbidden:          "You are not allowed to perform this action.",
	ErrChallengeLocked:    "Too many failed attempts. Request a new code.",
	ErrTwoFactorRequired:  "Two-factor verification is required.",
	ErrUserNotFound:       "The user does not exist.",
	ErrAlreadyEnabled:     "Two-factor authentication is already enabled.",
	ErrAlreadyComplete:    "This session has already completed two-factor verification.",
	ErrRateLimited:        "Too many verification attempts. Try again later.",
	ErrInternalServer:     "Something went wrong.",
	ErrEncoding:           "Failed to encode the provisioning image.",
}

// MessageFor returns the human message for a code.
func MessageFor(code string) string {
	if msg, ok := Messages[code]; ok {
		return msg
	}
	return code
}
