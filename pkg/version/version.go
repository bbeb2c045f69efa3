package version

import (
	"fmt"
	"net/http"
	"runtime"
)

// This variables are injected at build time.

// WatchlistVersion hosts the version of the app.
var WatchlistVersion = "development"

// Commit is the commit hash of the build
var Commit string

// BuildDate is the date it was built
var BuildDate string

// GoVersion is the go version that was used to compile this
var GoVersion string

// UserAgent return a standard user agent for use with all HTTP requests. This is implemented in one place so
// it's uniform across the watchlist client.
func UserAgent() string {
	return fmt.Sprintf("watchlist/%s (%s/%s)", WatchlistVersion, runtime.GOOS, runtime.GOARCH)
}

// SetUserAgent augments an http.Request with a standard user agent, unless the caller has set one already.
func SetUserAgent(req *http.Request) {
	if req.Header.Get("User-Agent") != "" {
		return
	}
	req.Header.Set("User-Agent", UserAgent())
}
