package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/tphakala/voicekit/cmd"
	"github.com/tphakala/voicekit/internal/buildinfo"
	"github.com/tphakala/voicekit/internal/conf"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   string
	buildDate string
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	build := buildinfo.NewContext(version, buildDate, uuid.NewString())

	if err := cmd.RootCommand(settings, build).Execute(); err != nil {
		os.Exit(1)
	}
}
