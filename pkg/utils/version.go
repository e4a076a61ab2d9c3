// Package utils holds build-time metadata.
package utils

// Set at build time via -ldflags.
var (
	Version   = "dev"
	Sha       = "unknown"
	Buildtime = "unknown"
)
