package entity

// ServiceError describes a failure of one source while serving a request.
type ServiceError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}
