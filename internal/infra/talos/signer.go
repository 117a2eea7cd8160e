package talos

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"tap_talos/internal/domain"
)

// Signer handles Talos REST API authentication signatures
type Signer struct {
	apiKey    string
	apiSecret string
	host      string
	now       func() time.Time
}

// NewSigner creates a new Signer instance
func NewSigner(creds domain.Credentials) *Signer {
	return &Signer{
		apiKey:    creds.APIKey,
		apiSecret: creds.APISecret,
		host:      creds.APIHost,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests to pin the timestamp.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Sign returns the timestamp and signature for a request.
// method: GET, POST, etc.
// path: /v1/balances (no host; any query string or fragment is ignored)
//
// Query parameters and bodies are not part of the payload. That is only correct
// for endpoints that have neither, which is every endpoint this tap calls.
func (s *Signer) Sign(method, path string) (timestamp, signature string, err error) {
	timestamp = formatTimestamp(s.now())
	payload := buildPayload(method, timestamp, s.host, stripQuery(path))

	if !isASCII(s.apiSecret) {
		return "", "", &domain.EncodingError{Field: "api_secret"}
	}
	if !isASCII(payload) {
		return "", "", &domain.EncodingError{Field: "payload"}
	}

	return timestamp, computeHmacSha256(payload, s.apiSecret), nil
}

// Headers creates the authentication headers for a request
func (s *Signer) Headers(method, path string) (http.Header, error) {
	timestamp, signature, err := s.Sign(method, path)
	if err != nil {
		return nil, err
	}

	headers := make(http.Header, 3)
	headers.Set(HeaderKey, s.apiKey)
	headers.Set(HeaderSign, signature)
	headers.Set(HeaderTimestamp, timestamp)
	return headers, nil
}

// formatTimestamp renders t in UTC with a literal zero microsecond suffix.
// The server expects the fixed-width form; sub-second precision is dropped.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + ".000000Z"
}

// buildPayload joins the signed fields, in order, with newlines.
func buildPayload(method, timestamp, host, path string) string {
	return strings.Join([]string{method, timestamp, host, path}, "\n")
}

func stripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}

func computeHmacSha256(message string, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}
