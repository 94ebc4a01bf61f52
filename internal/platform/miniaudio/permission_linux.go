//go:build linux

package miniaudio

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/tphakala/voicekit/internal/voice"
)

// soundDir holds the ALSA device nodes.
var soundDir = "/dev/snd"

// Permissions reports microphone access from the ALSA capture nodes
// without opening them.
type Permissions struct{}

// Query returns granted when any capture node is readable and writable,
// denied when capture nodes exist but none are accessible, and unknown when
// there are no nodes to inspect.
func (Permissions) Query(ctx context.Context) (voice.PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return voice.PermissionUnknown, err
	}

	nodes, err := filepath.Glob(filepath.Join(soundDir, "pcmC*D*c"))
	if err != nil {
		return voice.PermissionUnknown, err
	}
	if len(nodes) == 0 {
		if _, statErr := os.Stat(soundDir); statErr != nil {
			return voice.PermissionUnknown, nil
		}
		// Sound server setups may expose no raw capture nodes.
		return voice.PermissionPrompt, nil
	}

	for _, node := range nodes {
		if unix.Access(node, unix.R_OK|unix.W_OK) == nil {
			return voice.PermissionGranted, nil
		}
	}
	return voice.PermissionDenied, nil
}
