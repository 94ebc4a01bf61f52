package voice

import (
	"context"

	"github.com/tphakala/voicekit/internal/errors"
)

// Classification buckets capture failures.
type Classification string

const (
	ClassUnsupported            Classification = "Unsupported"
	ClassPermissionDenied       Classification = "PermissionDenied"
	ClassNoDevice               Classification = "NoDevice"
	ClassDeviceBusy             Classification = "DeviceBusy"
	ClassConstraintsUnsupported Classification = "ConstraintsUnsupported"
	ClassAborted                Classification = "Aborted"
	ClassActivationFailed       Classification = "ActivationFailed"
	ClassUnknown                Classification = "Unknown"
)

type classInfo struct {
	retryable bool
	message   string
	guidance  string
}

var classTable = map[Classification]classInfo{
	ClassUnsupported: {false,
		"Audio capture is not supported in this environment.", ""},
	ClassPermissionDenied: {false,
		"Microphone access was denied.",
		"Allow microphone access in your system privacy settings, then start again."},
	ClassNoDevice: {false,
		"No microphone was found.",
		"Connect a microphone and start again."},
	ClassDeviceBusy: {true,
		"The microphone is in use by another application.",
		"Close the other application and retry."},
	ClassConstraintsUnsupported: {false,
		"No microphone supports the requested audio settings.",
		"Lower the requested sample rate or channel count."},
	ClassAborted: {true,
		"Microphone access was interrupted.",
		"Retry."},
	ClassActivationFailed: {true,
		"The microphone stream did not start.",
		"Retry."},
	ClassUnknown: {true,
		"", // replaced by the underlying message
		"Retry."},
}

// Retryable reports whether the same request may succeed if repeated.
func (c Classification) Retryable() bool {
	return classTable[c].retryable
}

// Denial is a classified capture failure. It is returned as part of an
// Outcome, never as an error, but implements error so callers may
// propagate it.
type Denial struct {
	Class     Classification
	Message   string
	Guidance  string
	Retryable bool
	Cause     error
}

func newDenial(class Classification, cause error) *Denial {
	info := classTable[class]
	d := &Denial{
		Class:     class,
		Message:   info.message,
		Guidance:  info.guidance,
		Retryable: info.retryable,
		Cause:     cause,
	}
	if d.Message == "" && cause != nil {
		d.Message = cause.Error()
	}
	return d
}

func (d *Denial) Error() string {
	return string(d.Class) + ": " + d.Message
}

func (d *Denial) Unwrap() error { return d.Cause }

// ErrorCategory implements errors.CategorizedError.
func (d *Denial) ErrorCategory() errors.ErrorCategory {
	if d.Class == ClassPermissionDenied {
		return errors.CategoryPermission
	}
	return errors.CategoryCapture
}

// Outcome is the tagged result of AcquireCapture: exactly one of Handle and
// Denial is set.
type Outcome struct {
	Handle *CaptureHandle
	Denial *Denial
}

// Granted reports whether a capture handle was obtained.
func (o Outcome) Granted() bool {
	return o.Handle != nil
}

func granted(h *CaptureHandle) Outcome { return Outcome{Handle: h} }

func denied(d *Denial) Outcome { return Outcome{Denial: d} }

// classifyDeviceError maps a device failure onto a classification.
func classifyDeviceError(err error) Classification {
	switch {
	case errors.Is(err, ErrDevicePermission):
		return ClassPermissionDenied
	case errors.Is(err, ErrDeviceNotFound):
		return ClassNoDevice
	case errors.Is(err, ErrDeviceBusy):
		return ClassDeviceBusy
	case errors.Is(err, ErrDeviceConstraints):
		return ClassConstraintsUnsupported
	case errors.Is(err, ErrDeviceAborted),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ClassAborted
	default:
		return ClassUnknown
	}
}
