// Package miniaudio implements the voice capture and playback collaborators
// on top of miniaudio through malgo.
package miniaudio

import (
	"encoding/hex"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/voicekit/internal/conf"
	"github.com/tphakala/voicekit/internal/logger"
)

// sysDefault selects the platform default capture device.
const sysDefault = "sysdefault"

// backendsFor maps a configured backend name onto the malgo backend list.
// Auto picks the native backend for the running OS.
func backendsFor(name string) []malgo.Backend {
	switch name {
	case conf.BackendALSA:
		return []malgo.Backend{malgo.BackendAlsa}
	case conf.BackendPulseAudio:
		return []malgo.Backend{malgo.BackendPulseaudio}
	case conf.BackendWASAPI:
		return []malgo.Backend{malgo.BackendWasapi}
	case conf.BackendCoreAudio:
		return []malgo.Backend{malgo.BackendCoreaudio}
	case conf.BackendNull:
		return []malgo.Backend{malgo.BackendNull}
	}

	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

// initContext opens a malgo context, routing backend chatter to the trace log.
func initContext(backends []malgo.Backend, log logger.Logger) (*malgo.AllocatedContext, error) {
	return malgo.InitContext(backends, malgo.ContextConfig{}, func(message string) {
		log.Trace("miniaudio", logger.String("message", strings.TrimSpace(message)))
	})
}

// DeviceInfo describes an enumerated capture device.
type DeviceInfo struct {
	Index     int
	Name      string
	ID        string
	IsDefault bool
}

// matchesDevice reports whether a device satisfies the requested name or ID.
func matchesDevice(d DeviceInfo, want string) bool {
	if want == "" || want == sysDefault {
		return d.IsDefault
	}
	return d.ID == want || strings.Contains(d.Name, want)
}

// selectDevice picks the requested device from entries. An empty request
// falls back to the first device when none is flagged as default. The
// second result is false when nothing matched.
func selectDevice(entries []DeviceInfo, want string) (DeviceInfo, bool) {
	for _, e := range entries {
		if matchesDevice(e, want) {
			return e, true
		}
	}
	if (want == "" || want == sysDefault) && len(entries) > 0 {
		return entries[0], true
	}
	return DeviceInfo{}, false
}

// hexToASCII converts a hexadecimal device ID to its ASCII form.
func hexToASCII(hexStr string) (string, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}

// entriesFrom decodes malgo device infos. Devices with undecodable IDs are
// skipped.
func entriesFrom(infos []malgo.DeviceInfo, log logger.Logger) []DeviceInfo {
	entries := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		info := &infos[i]
		decodedID, err := hexToASCII(info.ID.String())
		if err != nil {
			log.Debug("skipping device with undecodable ID",
				logger.Int("index", i),
				logger.Error(err))
			continue
		}
		entries = append(entries, DeviceInfo{
			Index:     i,
			Name:      info.Name(),
			ID:        decodedID,
			IsDefault: info.IsDefault == 1,
		})
	}
	return entries
}
