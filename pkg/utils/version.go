// Package utils holds build metadata and small string helpers used across
// commands.
package utils

// Set at release time with -ldflags "-X github.com/papercomputeco/serenity/pkg/utils.Version=...".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
