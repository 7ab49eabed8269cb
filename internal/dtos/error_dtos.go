package dtos

// ValidationErrorDetail describes one failed field in a request payload.
type ValidationErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}
