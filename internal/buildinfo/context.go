// Package buildinfo carries build-time metadata separate from user configuration
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
// It is injected at startup through linker flags.
type Context struct {
	version   string
	buildDate string
	systemID  string
}

// NewContext returns build metadata. Empty values report as UnknownValue.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{version: version, buildDate: buildDate, systemID: systemID}
}

// Version returns the release version.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build timestamp.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// SystemID returns the anonymous installation identifier used for telemetry.
func (c *Context) SystemID() string {
	if c == nil || c.systemID == "" {
		return UnknownValue
	}
	return c.systemID
}

// Release returns the telemetry release name.
func (c *Context) Release() string {
	return fmt.Sprintf("voicekit@%s", c.Version())
}

// String formats the version line printed by the CLI.
func (c *Context) String() string {
	return fmt.Sprintf("voicekit %s (built %s)", c.Version(), c.BuildDate())
}
