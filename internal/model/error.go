package model

// AppError is the error payload every typed error in this service carries and
// the only error body the HTTP API returns.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"` // user-facing
	Stage   string `json:"stage"`   // pipeline step that failed

	URL     string `json:"url,omitempty"`
	Line    int    `json:"line,omitempty"`    // 1-based; 0 means "not set"
	Snippet string `json:"snippet,omitempty"` // keep under ~200 chars
	Hint    string `json:"hint,omitempty"`
}

type ErrorResponse struct {
	Error AppError `json:"error"`
}
