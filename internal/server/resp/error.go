package resp

const (
	ErrBadRequest     = "Invalid request parameters"
	ErrInvalidJSON    = "Invalid JSON format"
	ErrInternalServer = "An unexpected error occurred"
	ErrDatabase       = "Database operation failed"
	ErrUnauthorized   = "Authentication failed"
)
