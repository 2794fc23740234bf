package contracts

import (
	"errors"
	"fmt"
)

// ErrorKind classifies selection-time failures for audit and logging
type ErrorKind string

const (
	KindMissingFactorData      ErrorKind = "missing_factor_data"
	KindGateUnderflow          ErrorKind = "gate_underflow"
	KindHardRejectAtLevel      ErrorKind = "hard_reject_at_level"
	KindTargetPriceUndefined   ErrorKind = "target_price_undefined"
	KindExternalServiceFailure ErrorKind = "external_service_failure"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrMissingFactorData    = errors.New("missing factor data")
	ErrTargetPriceUndefined = errors.New("target price undefined")
	ErrExternalService      = errors.New("external service failure")
	ErrNarrativeUnavailable = errors.New("narrative service unavailable")
)

var kindSentinels = map[ErrorKind]error{
	KindMissingFactorData:      ErrMissingFactorData,
	KindTargetPriceUndefined:   ErrTargetPriceUndefined,
	KindExternalServiceFailure: ErrExternalService,
}

// SelectionError attaches kind, strategy and instrument to a failure
type SelectionError struct {
	Kind         ErrorKind
	Strategy     Strategy
	InstrumentID string
	Err          error
}

// NewSelectionError wraps err; a nil err falls back to the kind's sentinel
func NewSelectionError(kind ErrorKind, strategy Strategy, instrumentID string, err error) *SelectionError {
	if err == nil {
		err = kindSentinels[kind]
	}
	return &SelectionError{Kind: kind, Strategy: strategy, InstrumentID: instrumentID, Err: err}
}

func (e *SelectionError) Error() string {
	msg := string(e.Kind)
	if e.Strategy != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Strategy)
	}
	if e.InstrumentID != "" {
		msg = fmt.Sprintf("%s %s", msg, e.InstrumentID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SelectionError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err, or "" when err is not a SelectionError
func KindOf(err error) ErrorKind {
	var se *SelectionError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
