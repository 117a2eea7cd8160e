package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable.
// Nothing in the tap retries today; the flag is carried so a host can decide.
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a transport failure while talking to the API
type NetworkError struct {
	Op        string // Request that failed (e.g., "GET /v1/balances")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// UpstreamError is returned for any non-2xx response from the API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return "upstream error: status=" + strconv.Itoa(e.StatusCode) + " body=" + e.Body
}

func (e *UpstreamError) IsRetriable() bool {
	return false
}

// MalformedResponseError is returned when a 2xx body cannot be turned into records.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err == nil {
		return "malformed response: " + e.Reason
	}
	return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
}

func (e *MalformedResponseError) IsRetriable() bool {
	return false
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// EncodingError is returned by the signer when an input cannot be ASCII encoded.
type EncodingError struct {
	Field string
}

func (e *EncodingError) Error() string {
	return "encoding error [" + e.Field + "]: " + ErrNonASCII.Error()
}

func (e *EncodingError) Unwrap() error {
	return ErrNonASCII
}

var (
	// ErrMissingData is wrapped when the response envelope has no "data" key.
	ErrMissingData = errors.New("response has no data key")

	// ErrNonASCII is wrapped by EncodingError.
	ErrNonASCII = errors.New("value is not ASCII encodable")

	// ErrStreamNotFound is returned when a catalog or state names an unknown stream.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
