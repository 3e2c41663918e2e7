package errors

type HTTPError struct {
	Code       int
	Message    string
	StatusCode int
}

func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

// WithStatus returns a copy of e answered with statusCode.
func (e HTTPError) WithStatus(statusCode int) *HTTPError {
	e.StatusCode = statusCode
	return &e
}

func (e HTTPError) Error() string {
	return e.Message
}
