package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/campuskit/faceroll/cmd"
	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/logging"
)

// version and buildDate are injected at build time via ldflags.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	// A .env file is optional, deployments without one are fine.
	_ = godotenv.Load()

	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}
	settings.Version = version
	settings.BuildDate = buildDate

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		os.Exit(1)
	}
}
