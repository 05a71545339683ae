package rpc

import "github.com/vietddude/crmgate/internal/core/domain"

// Operation describes one outbound call.
type Operation = domain.Operation

// Get creates a GET operation.
func Get(path string) Operation {
	return Operation{Method: domain.MethodGet, Path: path}
}

// Post creates a POST operation with a JSON body.
func Post(path string, body any) Operation {
	return Operation{Method: domain.MethodPost, Path: path, Body: body}
}

// Put creates a PUT operation with a JSON body.
func Put(path string, body any) Operation {
	return Operation{Method: domain.MethodPut, Path: path, Body: body}
}

// Patch creates a PATCH operation with a JSON body.
func Patch(path string, body any) Operation {
	return Operation{Method: domain.MethodPatch, Path: path, Body: body}
}

// Delete creates a DELETE operation.
func Delete(path string) Operation {
	return Operation{Method: domain.MethodDelete, Path: path}
}

// NewOperation creates an operation from a textual verb, as typed on a
// command line.
func NewOperation(method, path string, body any) Operation {
	return Operation{Method: domain.ParseMethod(method), Path: path, Body: body}
}
