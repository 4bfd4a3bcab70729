package handler

const (
	errInternalServer = "Internal server error"
	errUnauthorized   = "Unauthorized"
	errKeyNotFound    = "API key not found"
)
