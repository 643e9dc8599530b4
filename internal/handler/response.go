package handler

// Response is the one JSON envelope every endpoint speaks: status plus
// either a payload or a message, never both. Run summaries, health
// snapshots, and error strings all ride inside it so cron providers
// can parse responses uniformly.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// NewSuccessResponse wraps a payload in the success envelope.
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

// NewErrorResponse wraps a human-readable reason in the error envelope.
func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}
