package core

// EndpointProvider provides a list of endpoints to register dynamically
type EndpointProvider interface {
	GetEndpoints() []Endpoint
}

// Endpoint is a framework-agnostic route description. Adapters bind a
// handler to it by OperationID.
type Endpoint struct {
	Path     string
	Method   string
	Metadata EndpointMetadata
}

type EndpointMetadata struct {
	OperationID string
	Description string
	// Access is the minimum credential the route requires.
	Access Access
	// RateLimited routes are throttled per client address.
	RateLimited bool
}

type Access int

const (
	Public Access = iota
	Authenticated
	AdminOnly
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
