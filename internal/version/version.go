package version

import "fmt"

// Version information set via ldflags during build
var (
	Version   = "2.9.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// The original httping carried this marker in its banner; it is preserved so
// scripts matching on the banner keep working.
const copyright = "(C) 2003-2010 folkert@vanheusden.com"

// Banner returns the single-line version banner.
func Banner() string {
	return fmt.Sprintf("HTTPing v%s %s", Version, copyright)
}

// FullVersion returns the banner plus build metadata and the TLS indicator.
// crypto/tls is always linked, so the SSL line is unconditional.
func FullVersion() string {
	s := Banner() + "\n * SSL support included (SHA-256 fingerprints)"
	if GitCommit != "unknown" || BuildDate != "unknown" {
		s += fmt.Sprintf("\n * commit: %s, built: %s", GitCommit, BuildDate)
	}
	return s
}

// UserAgent returns the default User-Agent header value.
func UserAgent() string {
	return "HTTPing v" + Version
}
