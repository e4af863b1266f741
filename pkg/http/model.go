package http

// APIResponse is the envelope every endpoint writes. Status mirrors the
// HTTP status code so clients reading the body alone can still branch.
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListDataResponse carries rows plus the total count available.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
