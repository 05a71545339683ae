package domain

import (
	"encoding/json"
	"fmt"
)

// Envelope is the response body convention shared by all API endpoints.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Details string          `json:"details,omitempty"`
	Message string          `json:"message,omitempty"`

	// Raw is the undecoded body, kept for callers with non-envelope payloads.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes leniently: a field of an unexpected type is left
// empty instead of failing the whole body.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var raw struct {
		Success json.RawMessage `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   json.RawMessage `json:"error"`
		Details json.RawMessage `json:"details"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*e = Envelope{
		Data:    raw.Data,
		Error:   rawString(raw.Error),
		Details: rawString(raw.Details),
		Message: rawString(raw.Message),
	}
	if len(raw.Success) > 0 {
		_ = json.Unmarshal(raw.Success, &e.Success)
	}
	return nil
}

func rawString(r json.RawMessage) string {
	if len(r) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r, &s); err != nil {
		return ""
	}
	return s
}

// Cause picks the human-readable failure reason: details, message, error,
// then the transport status text, then a generic status line.
func (e *Envelope) Cause(statusCode int, statusText string) string {
	if e != nil {
		for _, s := range []string{e.Details, e.Message, e.Error} {
			if s != "" {
				return s
			}
		}
	}
	if statusText != "" {
		return statusText
	}
	return fmt.Sprintf("HTTP error %d", statusCode)
}

// DecodeData unmarshals the data field into v.
func (e *Envelope) DecodeData(v any) error {
	if e == nil || len(e.Data) == 0 {
		return fmt.Errorf("envelope has no data")
	}
	return json.Unmarshal(e.Data, v)
}

// StatusEnvelope is the body of the lightweight status probe.
type StatusEnvelope struct {
	Success            bool  `json:"success"`
	LastWriteTimestamp int64 `json:"lastWriteTimestamp,omitempty"`
}
