package domain

import "strings"

// Method is the HTTP verb of an outbound call.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

// ParseMethod normalises a verb. An empty string means GET.
func ParseMethod(s string) Method {
	if s == "" {
		return MethodGet
	}
	return Method(strings.ToUpper(s))
}

// IsMutating reports whether a successful call with this method changes
// server state (create, replace, delete) and therefore invalidates views.
func (m Method) IsMutating() bool {
	switch m {
	case MethodPost, MethodPut, MethodDelete:
		return true
	}
	return false
}

// Operation describes one outbound call: the target plus its call options.
type Operation struct {
	// Method defaults to GET when empty.
	Method Method

	// Path is resolved against the gateway base URL (e.g. "/api/companies").
	Path string

	// Body is JSON-encoded when non-nil.
	Body any

	// Headers are merged over the default headers.
	Headers map[string]string

	// SkipRefresh opts a mutating call out of the write-effect side effects.
	SkipRefresh bool

	// Silent suppresses user-visible failure notices (status probes).
	Silent bool
}

// EffectiveMethod returns the method, defaulting to GET.
func (o Operation) EffectiveMethod() Method {
	if o.Method == "" {
		return MethodGet
	}
	return ParseMethod(string(o.Method))
}

func (o Operation) String() string {
	return string(o.EffectiveMethod()) + " " + o.Path
}
