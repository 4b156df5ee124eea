package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ResponseType controls how a response body is materialized.
type ResponseType string

const (
	// ResponseTypeDefault materializes the body as text.
	ResponseTypeDefault     ResponseType = ""
	ResponseTypeText        ResponseType = "text"
	ResponseTypeJSON        ResponseType = "json"
	ResponseTypeArrayBuffer ResponseType = "arraybuffer"
	ResponseTypeBlob        ResponseType = "blob"
)

// ErrNoJSONBody is returned by Envelope.Decode when the response carried no JSON.
var ErrNoJSONBody = errors.New("response has no JSON body")

// Envelope is the result of one successful exchange.
type Envelope struct {
	Status int
	// SecurityToken is the X-CSRF-Token response header, "" when absent.
	SecurityToken string
	// Response holds the body when it was JSON; nil otherwise.
	Response json.RawMessage
	// Raw is the unmodified body.
	Raw []byte
	// Text is set for the default and text response types.
	Text string
}

// HasJSON reports whether the body was parsed as JSON.
func (e *Envelope) HasJSON() bool {
	return e != nil && e.Response != nil
}

// Lookup reads a value from the JSON body using a gjson path.
func (e *Envelope) Lookup(path string) gjson.Result {
	if !e.HasJSON() {
		return gjson.Result{}
	}
	return gjson.GetBytes(e.Response, path)
}

// Decode unmarshals the JSON body into v.
func (e *Envelope) Decode(v any) error {
	if !e.HasJSON() {
		return ErrNoJSONBody
	}
	return json.Unmarshal(e.Response, v)
}

// StatusError is returned for responses outside [200, 400).
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// StatusCode exposes the status for classification by metrics.
func (e *StatusError) StatusCode() int {
	return e.Status
}
