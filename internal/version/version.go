package version

import (
	"fmt"
	"runtime"
)

var (
	version = "undefined"
	commit  = "unknown"
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// UserAgent identifies the client in outgoing requests
func UserAgent() string {
	return fmt.Sprintf("mcauth/%s (%s; %s)", version, runtime.GOOS, runtime.GOARCH)
}
