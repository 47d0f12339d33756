package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/httping/httping/internal/version"
)

type Args struct {
	Target string // positional: bare hostname or full URL
	URL    string // --url alternative to the positional form

	// Endpoint
	Port      uint
	Path      string
	SSL       bool
	ForceIPv4 bool
	ForceIPv6 bool

	// Probe loop
	Count         uint
	Interval      time.Duration
	Timeout       time.Duration
	Flood         bool
	FailThreshold uint

	// Request shape
	KeepAlive bool
	Get       bool
	ShowSpeed bool
	DataLimit int64
	ShowBytes bool
	Compress  bool
	NoCache   bool
	UserAgent string
	Referer   string
	Headers   []string

	// Result interpretation and line output
	ShowStatusCodes bool
	OKCodes         []int
	Label           string
	Split           bool
	Audible         bool
	Parseable       bool
	Quiet           bool
	Verbose         bool

	// Resolution and socket options
	ResolveOnce bool
	DNSCache    time.Duration
	Bind        string
	Proxy       string

	// TLS
	Fingerprint bool
	Insecure    bool

	// Output sinks
	Json     bool   // NDJSON to stdout, disables text/TUI
	JsonFile string // NDJSON to file while keeping text/TUI
	TUI      bool
	Chart    string

	// Config file and logging
	ConfigFile string
	Log        string // log file path, empty means no logging
	LogLevel   string // log level: debug, info, warn, error
}

func ParseArgs() (Args, error) {
	var args Args
	var showVersion bool

	// Set custom usage message
	flag.Usage = func() {
		println("HTTPing - HTTP round-trip latency prober")
		println()
		println("Measures connect, time-to-first-byte and total round-trip time of")
		println("minimal HTTP requests, ping style.")
		println()
		println("Usage:")
		println("  httping [OPTIONS] TARGET")
		println()
		println("Examples:")
		println("  httping example.com                  # HEAD / on port 80")
		println("  httping -l -c 10 example.com         # 10 probes over TLS")
		println("  httping -G -b https://example.com/   # GET with transfer speed")
		println("  httping -J example.com               # NDJSON results to stdout")
		println("  httping --tui example.com            # live dashboard")
		println()
		println("Options:")
		flag.PrintDefaults()
	}

	flag.BoolVarP(&showVersion, "version", "v", false, "Show version information")
	flag.StringVarP(&args.URL, "url", "g", "", "Full URL to ping (http:// or https://)")
	flag.UintVarP(&args.Port, "port", "p", 0, "Destination port (default: 80, 443 with --ssl)")
	flag.StringVar(&args.Path, "path", "/", "Request path when TARGET is a bare host")
	flag.BoolVarP(&args.SSL, "ssl", "l", false, "Connect using TLS (https)")
	flag.BoolVarP(&args.ForceIPv4, "ipv4", "4", false, "Force IPv4")
	flag.BoolVarP(&args.ForceIPv6, "ipv6", "6", false, "Force IPv6")

	flag.UintVarP(&args.Count, "count", "c", 0, "Number of probes (0 = until interrupted)")
	flag.DurationVarP(&args.Interval, "interval", "i", time.Second, "Delay between probes")
	flag.DurationVarP(&args.Timeout, "timeout", "t", 30*time.Second, "Per-probe timeout")
	flag.BoolVarP(&args.Flood, "flood", "f", false, "No delay between probes")
	flag.UintVarP(&args.FailThreshold, "fail-threshold", "n", 0, "Stop after this many consecutive failures (0 = never)")

	flag.BoolVarP(&args.KeepAlive, "keep-alive", "Q", false, "Use a persistent connection; prints 'C' when a reconnect was needed")
	flag.BoolVarP(&args.Get, "get", "G", false, "Do a GET request instead of HEAD (reads the page contents)")
	flag.BoolVarP(&args.ShowSpeed, "show-speed", "b", false, "Show transfer speed in KB/s (implies --get)")
	flag.Int64VarP(&args.DataLimit, "data-limit", "L", 0, "Limit the amount of body data read, in bytes (0 = unlimited)")
	flag.BoolVarP(&args.ShowBytes, "show-bytes", "X", false, "Show the number of bytes transferred")
	flag.BoolVarP(&args.Compress, "compress", "B", false, "Ask for gzip-compressed transfer")
	flag.BoolVarP(&args.NoCache, "no-cache", "Z", false, "Ask any proxies on the way not to cache the request")
	flag.StringVarP(&args.UserAgent, "user-agent", "I", version.UserAgent(), "User-Agent header value")
	flag.StringVarP(&args.Referer, "referer", "R", "", "Referer header value")
	flag.StringArrayVarP(&args.Headers, "header", "H", nil, "Extra request header ('Name: value', repeatable)")

	flag.BoolVarP(&args.ShowStatusCodes, "show-statuscodes", "s", false, "Show the HTTP status code on each line")
	flag.IntSliceVarP(&args.OKCodes, "ok-codes", "o", []int{200}, "HTTP status codes counted as ok")
	flag.StringVarP(&args.Label, "label", "e", "", "Text shown when the status code is not ok")
	flag.BoolVarP(&args.Split, "split", "S", false, "Split time into connect and exchange")
	flag.BoolVarP(&args.Audible, "audible", "a", false, "Audible ping (terminal bell per probe)")
	flag.BoolVarP(&args.Parseable, "parseable", "m", false, "Machine-parseable line output")
	flag.BoolVarP(&args.Quiet, "quiet", "q", false, "No output, only the exit code")
	flag.BoolVar(&args.Verbose, "verbose", false, "Verbose line output and debug logging")

	flag.BoolVarP(&args.ResolveOnce, "resolve-once", "r", false, "Resolve the hostname only once, before the loop")
	flag.DurationVar(&args.DNSCache, "dns-cache", 0, "Cache successful lookups for this long (0 = resolve per probe)")
	flag.StringVarP(&args.Bind, "bind", "y", "", "Source address to bind to (ip or ip:port)")
	flag.StringVarP(&args.Proxy, "proxy", "x", "", "Plain-HTTP proxy as host:port")

	flag.BoolVarP(&args.Fingerprint, "fingerprint", "z", false, "Show the SHA-256 fingerprint of the peer certificate")
	flag.BoolVar(&args.Insecure, "insecure", false, "Skip TLS certificate verification")

	flag.BoolVarP(&args.Json, "json", "J", false, "Write NDJSON results to stdout (disables text output and TUI)")
	flag.StringVarP(&args.JsonFile, "json-file", "j", "", "Write NDJSON results to file (keeps text output or TUI)")
	flag.BoolVar(&args.TUI, "tui", false, "Live terminal dashboard")
	flag.StringVar(&args.Chart, "chart", "", "Write a latency chart PNG to this file at exit")

	flag.StringVar(&args.ConfigFile, "config", "", "YAML file with default option values")
	flag.StringVar(&args.Log, "log", "", "Diagnostic log file (empty = no file logging)")
	flag.StringVar(&args.LogLevel, "log-level", "error", "Log level: debug, info, warn, error")
	flag.Parse()

	// Handle version flag
	if showVersion {
		fmt.Println(version.FullVersion())
		os.Exit(0)
	}

	// File values fill in everything the command line left untouched.
	if args.ConfigFile != "" {
		defaults, err := LoadDefaults(args.ConfigFile)
		if err != nil {
			return args, fmt.Errorf("config file: %w", err)
		}
		if err := applyDefaults(&args, defaults, flag.CommandLine.Changed); err != nil {
			return args, fmt.Errorf("config file: %w", err)
		}
	}

	args.Target = flag.Arg(0)
	if args.Target == "" && args.URL == "" {
		return args, errors.New("target is required (positional or --url)")
	}

	switch {
	case args.Target != "" && args.URL != "":
		return args, errors.New("cannot use both a positional target and --url")
	case args.Json && args.TUI:
		return args, errors.New("cannot use both --json and --tui")
	case args.Json && args.JsonFile != "":
		return args, errors.New("cannot use both --json and --json-file")
	case args.Quiet && (args.TUI || args.Verbose):
		return args, errors.New("--quiet excludes --tui and --verbose")
	case args.ForceIPv4 && args.ForceIPv6:
		return args, errors.New("cannot force both IPv4 and IPv6")
	case args.Port > 65535:
		return args, errors.New("port must be between 0 and 65535")
	case args.Interval <= 0:
		return args, errors.New("interval must be positive")
	case args.Timeout <= 0:
		return args, errors.New("timeout must be positive")
	case args.DataLimit < 0:
		return args, errors.New("data limit cannot be negative")
	case args.DNSCache < 0:
		return args, errors.New("dns cache duration cannot be negative")
	case args.ResolveOnce && args.DNSCache > 0:
		return args, errors.New("cannot use both --resolve-once and --dns-cache")
	case args.Proxy != "" && args.SSL:
		return args, errors.New("proxying is plain-HTTP only, cannot combine --proxy with --ssl")
	case len(args.OKCodes) == 0:
		return args, errors.New("ok-codes must name at least one status code")
	}
	for _, code := range args.OKCodes {
		if code < 100 || code > 599 {
			return args, fmt.Errorf("ok-codes: %d is not an HTTP status code", code)
		}
	}

	// Transfer speed needs a body to measure.
	if args.ShowSpeed {
		args.Get = true
	}
	if args.Verbose && args.LogLevel == "error" {
		args.LogLevel = "debug"
	}

	return args, nil
}

// Method returns the HTTP method the probe will use.
func (a Args) Method() string {
	if a.Get {
		return "GET"
	}
	return "HEAD"
}
