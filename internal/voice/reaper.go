package voice

import (
	"fmt"
	"time"

	"github.com/tphakala/voicekit/internal/events"
	"github.com/tphakala/voicekit/internal/logger"
	"github.com/tphakala/voicekit/internal/observability/metrics"
)

// Release tears down every held resource: the analysis graph, the capture
// handle, the tracked recognition session and the synthesis slot, in that
// order. The graph goes first so it never reads from a stopped source. Each
// step runs independently; Release never fails and may be called at any time.
func (m *Manager) Release() {
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var released []string

	if m.graph != nil {
		m.reapStep("graph", m.closeGraphLocked)
		m.graph = nil
		released = append(released, "graph")
	}

	if m.handle != nil {
		m.reapStep("capture", m.discardHandleLocked)
		m.handle = nil
		released = append(released, "capture")
	}

	if m.session != nil {
		session := m.session
		m.session = nil
		m.reapStep("recognition", session.Stop)
		released = append(released, "recognition")
	}

	if m.caps.Synthesis {
		hadSlot := m.slot != nil
		m.reapStep("synthesis", m.cancelSlotLocked)
		m.slot = nil
		if hadSlot {
			released = append(released, "synthesis")
		}
	}

	m.metrics.RecordOperation(metrics.OpRelease, metrics.StatusSuccess)
	m.metrics.RecordDuration(metrics.OpRelease, time.Since(start).Seconds())

	if len(released) > 0 {
		m.log.Info("resources released", logger.Any("released", released))
	}

	ev := events.NewLifecycleEvent(events.ResourcesReleased, componentVoice)
	ev.Metadata = map[string]any{"released": released}
	m.publish(ev)
}

// reapStep runs one teardown step, containing platform panics so the
// remaining steps still run.
func (m *Manager) reapStep(name string, step func()) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.RecordError(metrics.OpRelease, name)
			m.log.Error("release step panicked",
				logger.String("step", name),
				logger.String("panic", fmt.Sprint(r)))
		}
	}()
	step()
}
