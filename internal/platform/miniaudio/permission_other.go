//go:build !linux

package miniaudio

import (
	"context"

	"github.com/tphakala/voicekit/internal/voice"
)

// Permissions has no query mechanism outside Linux; the device request
// itself decides.
type Permissions struct{}

// Query always reports unknown.
func (Permissions) Query(context.Context) (voice.PermissionState, error) {
	return voice.PermissionUnknown, nil
}
