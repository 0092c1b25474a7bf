package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for each lookup failure kind. A *LookupError unwraps to
// exactly one of these, so callers can branch with errors.Is.
var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrCityNotFound    = errors.New("city not found")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrDecode          = errors.New("malformed weather payload")
)

// Kind tags a lookup failure. The HTTP boundary maps each kind to a status code.
type Kind string

const (
	KindNone     Kind = ""
	KindAuth     Kind = "auth"
	KindNotFound Kind = "not_found"
	KindUpstream Kind = "upstream"
	KindDecode   Kind = "decode"
)

func (k Kind) sentinel() error {
	switch k {
	case KindAuth:
		return ErrInvalidAPIKey
	case KindNotFound:
		return ErrCityNotFound
	case KindDecode:
		return ErrDecode
	default:
		return ErrUpstreamFailure
	}
}

// LookupError is the error returned by a failed weather lookup.
// StatusCode is the upstream HTTP status, or 0 when the request never got a response.
type LookupError struct {
	Kind       Kind
	City       string
	StatusCode int
	Err        error
}

func (e *LookupError) Error() string {
	var msg string
	switch e.Kind {
	case KindAuth:
		msg = "invalid API key"
	case KindNotFound:
		msg = fmt.Sprintf("'%s' city not found", e.City)
	case KindDecode:
		msg = "weather data is not eligible, check the API response"
	default:
		if e.StatusCode != 0 {
			msg = fmt.Sprintf("weather service returned HTTP %d", e.StatusCode)
		} else {
			msg = "cannot reach the weather service"
		}
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *LookupError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf returns the Kind carried by err, or KindNone if err is not a *LookupError.
func KindOf(err error) Kind {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindNone
}

// ClassifyStatus maps an upstream HTTP status to a lookup error. Returns nil for 2xx.
func ClassifyStatus(city string, statusCode int) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return &LookupError{Kind: KindAuth, City: city, StatusCode: statusCode}
	case statusCode == http.StatusBadRequest, statusCode == http.StatusNotFound:
		return &LookupError{Kind: KindNotFound, City: city, StatusCode: statusCode}
	default:
		return &LookupError{Kind: KindUpstream, City: city, StatusCode: statusCode}
	}
}
