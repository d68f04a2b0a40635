// Package main provides the region matcher HTTP server entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/region-matcher/internal/app"
	"github.com/garyellow/region-matcher/internal/buildinfo"
	"github.com/garyellow/region-matcher/internal/config"
)

var versionFlag = flag.Bool("version", false, "Print version information and exit")

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Println(buildinfo.Get().String())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	application, err := app.Initialize(context.Background(), cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
