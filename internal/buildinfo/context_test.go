package buildinfo

import (
	"testing"
)

func TestContext_Version(t *testing.T) {
	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{
			name: "nil context",
			ctx:  nil,
			want: UnknownValue,
		},
		{
			name: "empty version",
			ctx:  NewContext("", "2026-01-01", "test-system"),
			want: UnknownValue,
		},
		{
			name: "valid version",
			ctx:  NewContext("1.0.0", "2026-01-01", "test-system"),
			want: "1.0.0",
		},
		{
			name: "version with pre-release tag",
			ctx:  NewContext("1.0.0-beta.1", "2026-01-01", "test-system"),
			want: "1.0.0-beta.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.ctx.Version()
			if got != tt.want {
				t.Errorf("Context.Version() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContext_Metadata(t *testing.T) {
	var nilCtx *Context
	if got := nilCtx.BuildDate(); got != UnknownValue {
		t.Errorf("nil BuildDate() = %v, want %v", got, UnknownValue)
	}
	if got := nilCtx.SystemID(); got != UnknownValue {
		t.Errorf("nil SystemID() = %v, want %v", got, UnknownValue)
	}

	ctx := NewContext("2.1.0", "2026-10-01T12:00:00Z", "abc")
	if got := ctx.SystemID(); got != "abc" {
		t.Errorf("SystemID() = %v, want abc", got)
	}
	if got := ctx.Release(); got != "voicekit@2.1.0" {
		t.Errorf("Release() = %v, want voicekit@2.1.0", got)
	}
	if got := ctx.String(); got != "voicekit 2.1.0 (built 2026-10-01T12:00:00Z)" {
		t.Errorf("String() = %v", got)
	}
	if got := NewContext("", "", "").Release(); got != "voicekit@unknown" {
		t.Errorf("Release() = %v, want voicekit@unknown", got)
	}
}
