package response

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Code       string      `json:"code,omitempty"`  // machine readable error kind
	Field      string      `json:"field,omitempty"` // offending input field for validation errors
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// CodedError is Error plus the error kind and field, so clients can tell
// validation failures from state conflicts without parsing messages.
func CodedError(statusCode int, code, field, err string) Response {
	resp := Error(statusCode, err)
	resp.Code = code
	resp.Field = field
	return resp
}
