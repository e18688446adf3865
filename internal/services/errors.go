package services

import (
	"errors"
	"fmt"

	"finboard/backend-go/internal/models"
)

var (
	ErrMissingParam         = errors.New("missing parameter")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrRateLimited          = errors.New("rate_limited")
	ErrInvalidParam         = errors.New("invalid parameter")
	ErrNoData               = errors.New("no data available")
	ErrDataShape            = errors.New("unexpected payload shape")
	ErrTransport            = errors.New("upstream transport failure")
	ErrNoSymbol             = errors.New("No symbol configured")
	ErrCircuitOpen          = errors.New("upstream circuit breaker open")
	ErrHostNotAllowed       = errors.New("source host not allowed")
	ErrWidgetNotFound       = errors.New("widget not found")
	ErrDuplicateWidget      = errors.New("duplicate widget id")
	ErrInvalidWidget        = errors.New("invalid widget")
	ErrUnsupportedVersion   = errors.New("unsupported document version")
)

// ParamError is a client-correctable request problem.
type ParamError struct {
	Param string
}

func (e *ParamError) Error() string {
	return "Missing required parameter: " + e.Param
}

func (e *ParamError) Is(target error) bool { return target == ErrMissingParam }

// ValidationError names the widget field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid widget %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidWidget }

type UnsupportedError struct {
	Provider models.Provider
	Name     string
}

func (e *UnsupportedError) Error() string {
	return "Unsupported endpoint: " + e.Name
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupportedOperation }

type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d", e.Status)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrTransport }

// VendorError scopes a failure to one vendor operation. Kind is one of the
// sentinels above and is what errors.Is matches against.
type VendorError struct {
	Provider  models.Provider
	Operation string
	Kind      error
	Message   string
	Err       error
}

func (e *VendorError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", providerLabel(e.Provider), e.Operation, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VendorError) Is(target error) bool { return target == e.Kind }

func (e *VendorError) Unwrap() error { return e.Err }

func providerLabel(p models.Provider) string {
	switch p {
	case models.ProviderAlphaVantage:
		return "Alpha Vantage"
	case models.ProviderFinnhub:
		return "Finnhub"
	case models.ProviderCustom:
		return "Custom source"
	}
	return string(p)
}

func vendorErr(p models.Provider, op string, kind error, msg string, err error) *VendorError {
	return &VendorError{Provider: p, Operation: op, Kind: kind, Message: msg, Err: err}
}

// PublicMessage renders err for API responses and widget error states. Vendor
// bodies and request URLs never appear in it.
func PublicMessage(err error) string {
	var ve *VendorError
	if errors.As(err, &ve) {
		label := providerLabel(ve.Provider)
		switch {
		case errors.Is(ve.Kind, ErrRateLimited):
			return fmt.Sprintf("%s %s: API limit reached. Try again later.", label, ve.Operation)
		case errors.Is(ve.Kind, ErrNoData):
			return "No data available for " + ve.Operation
		case errors.Is(ve.Kind, ErrInvalidParam):
			return "Invalid parameters for " + ve.Operation
		case errors.Is(ve.Kind, ErrDataShape):
			return fmt.Sprintf("Unexpected response from %s %s", label, ve.Operation)
		}
		return fmt.Sprintf("Failed to fetch %s %s", label, ve.Operation)
	}
	if errors.Is(err, ErrNoSymbol) {
		return ErrNoSymbol.Error()
	}
	return err.Error()
}

// Retryable reports whether the same request may succeed later unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransport)
}
