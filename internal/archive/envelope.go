package archive

import (
	"encoding/base64"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// TimeLayout is the receipt time format: UTC with microseconds and a "Z" suffix.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Envelope is the archived form of one inbound request, captured before the
// body is parsed.
type Envelope struct {
	Method     string              `json:"method"`
	Path       string              `json:"path"`
	Query      string              `json:"query,omitempty"`
	RemoteAddr string              `json:"remote_addr"`
	Headers    map[string][]string `json:"headers"`

	// Body holds the raw request body. Bodies that are not valid UTF-8 are
	// base64 encoded and BodyEncoding is set to "base64".
	Body         string `json:"body"`
	BodyEncoding string `json:"body_encoding,omitempty"`

	DevID string `json:"devid"`
	Time  string `json:"time"`
}

// NewEnvelope captures r and body as received at now.
func NewEnvelope(r *http.Request, body []byte, devid string, now time.Time) *Envelope {
	env := &Envelope{
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.RawQuery,
		RemoteAddr: r.RemoteAddr,
		Headers:    redactHeaders(r.Header),
		DevID:      devid,
		Time:       now.UTC().Format(TimeLayout),
	}
	if utf8.Valid(body) {
		env.Body = string(body)
	} else {
		env.Body = base64.StdEncoding.EncodeToString(body)
		env.BodyEncoding = "base64"
	}
	return env
}

// Marshal serializes the envelope as JSON.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// RawBody returns the original body bytes.
func (e *Envelope) RawBody() ([]byte, error) {
	if e.BodyEncoding == "base64" {
		return base64.StdEncoding.DecodeString(e.Body)
	}
	return []byte(e.Body), nil
}

// redactHeaders copies h, masking credentials.
func redactHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, vs := range h {
		if http.CanonicalHeaderKey(k) == "Authorization" {
			out[k] = []string{"[REDACTED]"}
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}
