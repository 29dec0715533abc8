// Package main is the single-binary entrypoint for Pulse.
package main

import "github.com/pulse-metrics/pulse/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
