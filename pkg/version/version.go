package version

import (
	"time"
)

// Set at build time with
// -ldflags "-X github.com/swanchain/go-swan-sdk/pkg/version.version=... -X github.com/swanchain/go-swan-sdk/pkg/version.buildTime=..."
var (
	version   = "unknown"
	buildTime = "0"
)

func Version() string {
	return version
}

// BuildTime parses the RFC3339 build timestamp, if one was provided.
func BuildTime() (time.Time, error) {
	return time.Parse(time.RFC3339, buildTime)
}
