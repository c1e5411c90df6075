package models

// APIStatus is the machine-readable outcome of an API call.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the uniform envelope for all HTTP responses.
type APIResponse struct {
	Status  APIStatus   `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// SuccessWithMessage creates a successful API response with a message and
// optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}

// SessionResult is the payload returned by session endpoints.
type SessionResult struct {
	SessionID string            `json:"session_id"`
	PatientID string            `json:"patient_id,omitempty"`
	State     DialogueState     `json:"state"`
	Turns     int               `json:"turns"`
	Fields    map[string]string `json:"fields,omitempty"`
	Reply     string            `json:"reply,omitempty"`
}

// CreateSessionRequest is the body for POST /api/v1/sessions.
type CreateSessionRequest struct {
	PatientID string `json:"patient_id"`
	Message   string `json:"message,omitempty"` // optional opening message
}

// SendMessageRequest is the body for POST /api/v1/sessions/{id}/messages.
type SendMessageRequest struct {
	Message string `json:"message"`
}
