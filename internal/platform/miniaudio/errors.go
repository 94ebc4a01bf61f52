package miniaudio

import (
	"context"
	"strings"

	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/voice"
)

const componentMiniaudio = "miniaudio"

// deviceErrorPatterns maps miniaudio result messages onto device sentinels.
// Order matters: the first match wins.
var deviceErrorPatterns = []struct {
	fragments []string
	sentinel  error
}{
	{[]string{"access denied", "permission", "not permitted"}, voice.ErrDevicePermission},
	{[]string{"busy", "in use", "already"}, voice.ErrDeviceBusy},
	{[]string{"no device", "does not exist", "not found", "no backend"}, voice.ErrDeviceNotFound},
	{[]string{"format", "not supported", "invalid device config", "invalid args"}, voice.ErrDeviceConstraints},
}

// classifyError wraps a malgo failure with the matching device sentinel.
// Unrecognised failures carry no sentinel and keep the driver's message.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var sentinel error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		sentinel = voice.ErrDeviceAborted
	default:
		msg := strings.ToLower(err.Error())
	match:
		for _, p := range deviceErrorPatterns {
			for _, f := range p.fragments {
				if strings.Contains(msg, f) {
					sentinel = p.sentinel
					break match
				}
			}
		}
	}

	var eb *errors.ErrorBuilder
	if sentinel != nil {
		eb = errors.Newf("%s: %w: %w", op, sentinel, err)
	} else {
		eb = errors.Newf("%s: %w", op, err)
	}

	return eb.
		Component(componentMiniaudio).
		Category(errors.CategoryCapture).
		Context("operation", op).
		Build()
}
