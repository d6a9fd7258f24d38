// Package perr holds the typed error taxonomy shared across pipeline
// packages, so callers can branch with errors.As instead of string
// matching. Each type corresponds to one row of the error taxonomy in
// the system design: registration, decoder, scene validation, render,
// and device-fatal errors. EOS is deliberately not an error type here;
// it is a terminal PipelineEvent state, not a failure.
package perr

import "fmt"

// RegistrationError reports a local, synchronous registration failure
// (duplicate ID, unknown referenced entity, constraint violation).
// Pipeline state is left unchanged.
type RegistrationError struct {
	Kind string // e.g. "duplicate_id", "unknown_input", "constraint"
	Msg  string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration error (%s): %s", e.Kind, e.Msg)
}

// DecoderError reports a packet-level or init-time decoder failure.
// Packet-level errors are logged and skipped by the caller; init
// failures are surfaced as a RegistrationError by the registering
// code.
type DecoderError struct {
	Msg string
	Err error
}

func (e *DecoderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decoder error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("decoder error: %s", e.Msg)
}

func (e *DecoderError) Unwrap() error { return e.Err }

// SceneValidationError reports that an entire scene update was
// rejected. The previous scene is left intact.
type SceneValidationError struct {
	Msg string
}

func (e *SceneValidationError) Error() string {
	return fmt.Sprintf("scene validation error: %s", e.Msg)
}

// RenderError reports a per-node render failure. The node's output is
// cleared to transparent and the tick continues for other nodes and
// outputs.
type RenderError struct {
	NodeMsg string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render error: %s: %v", e.NodeMsg, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// EncoderError reports a failure writing to or starting an encode
// sink's subprocess. The orchestrator logs it and keeps the output's
// other sinks running; the failing sink's caller decides whether to
// retry or tear the output down.
type EncoderError struct {
	Msg string
	Err error
}

func (e *EncoderError) Error() string {
	return fmt.Sprintf("encoder error: %s: %v", e.Msg, e.Err)
}

func (e *EncoderError) Unwrap() error { return e.Err }

// DeviceFatalError reports an error that aborts a whole render tick.
// The Renderer Driver raises it when a canvas of non-positive size is
// requested; no GPU device-lost condition is detected. The
// orchestrator returns it from RunTick without sending EOS to any
// output.
type DeviceFatalError struct {
	Msg string
	Err error
}

func (e *DeviceFatalError) Error() string {
	return fmt.Sprintf("device fatal error: %s: %v", e.Msg, e.Err)
}

func (e *DeviceFatalError) Unwrap() error { return e.Err }
