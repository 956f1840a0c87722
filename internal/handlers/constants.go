package handlers

const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "

	ErrInvalidBody         = "invalid JSON body"
	ErrUnauthorized        = "Unauthorized"
	ErrTooManyRequests     = "Too many attempts, try again later"
	ErrInternalServerError = "Internal server error"
)
