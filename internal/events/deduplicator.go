package events

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// DeduplicationConfig holds configuration for event deduplication
type DeduplicationConfig struct {
	Enabled bool
	TTL     time.Duration
	// Types lists the event types subject to deduplication. Other types
	// always pass.
	Types []EventType
}

// DefaultDeduplicationConfig suppresses repeated denials, which a UI retry
// loop can otherwise produce many times per second.
func DefaultDeduplicationConfig() *DeduplicationConfig {
	return &DeduplicationConfig{
		Enabled: true,
		TTL:     5 * time.Second,
		Types:   []EventType{CaptureDenied, SynthesisFailed},
	}
}

// Deduplicator drops events identical to one seen within the TTL window.
type Deduplicator struct {
	config *DeduplicationConfig
	seen   *cache.Cache
	types  map[EventType]struct{}

	totalSeen       atomic.Uint64
	totalSuppressed atomic.Uint64
}

// NewDeduplicator creates a deduplicator. A nil config disables it.
func NewDeduplicator(config *DeduplicationConfig) *Deduplicator {
	if config == nil || !config.Enabled || config.TTL <= 0 {
		return nil
	}

	types := make(map[EventType]struct{}, len(config.Types))
	for _, t := range config.Types {
		types[t] = struct{}{}
	}

	return &Deduplicator{
		config: config,
		// No janitor goroutine; expired entries are purged on write.
		seen:  cache.New(config.TTL, 0),
		types: types,
	}
}

// ShouldProcess reports whether the event should be delivered.
func (d *Deduplicator) ShouldProcess(event LifecycleEvent) bool {
	if d == nil {
		return true
	}
	if _, ok := d.types[event.Type]; !ok {
		return true
	}

	d.totalSeen.Add(1)

	if d.seen.ItemCount() > 0 && d.totalSeen.Load()%64 == 0 {
		d.seen.DeleteExpired()
	}

	if err := d.seen.Add(dedupeKey(event), struct{}{}, cache.DefaultExpiration); err != nil {
		d.totalSuppressed.Add(1)
		return false
	}
	return true
}

// Suppressed returns the number of events dropped as duplicates.
func (d *Deduplicator) Suppressed() uint64 {
	if d == nil {
		return 0
	}
	return d.totalSuppressed.Load()
}

func dedupeKey(event LifecycleEvent) string {
	return strings.Join([]string{
		string(event.Type),
		event.Component,
		event.Classification,
		event.Message,
	}, "|")
}
