package probe

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/httping/httping/internal/config"
)

// Target is the parsed endpoint a run probes. Host is a hostname or literal
// address without brackets, Path always starts with a slash and keeps any
// query string.
type Target struct {
	Host string
	Port uint16
	Path string
	TLS  bool
}

// newTarget derives the endpoint from the positional target or --url. A full
// URL wins over the --port, --path and --ssl flags; a bare host combines
// with them.
func newTarget(a config.Args) (Target, error) {
	raw := a.Target
	if a.URL != "" {
		raw = a.URL
	}
	t := Target{TLS: a.SSL, Path: a.Path}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return t, fmt.Errorf("invalid URL %q: %w", raw, err)
		}
		switch u.Scheme {
		case "http":
		case "https":
			t.TLS = true
		default:
			return t, fmt.Errorf("unsupported scheme %q, want http or https", u.Scheme)
		}
		t.Host = u.Hostname()
		if p := u.Port(); p != "" {
			port, err := strconv.ParseUint(p, 10, 16)
			if err != nil {
				return t, fmt.Errorf("invalid port %q in URL", p)
			}
			t.Port = uint16(port)
		}
		t.Path = u.RequestURI()
	} else if addr, err := netip.ParseAddr(raw); err == nil {
		// Literal address, possibly IPv6 with colons but no port.
		t.Host = addr.String()
	} else if host, port, err := net.SplitHostPort(raw); err == nil {
		p, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return t, fmt.Errorf("invalid port %q in target", port)
		}
		t.Host = host
		t.Port = uint16(p)
	} else {
		t.Host = raw
	}

	if t.Host == "" {
		return t, errors.New("target has no host")
	}
	if t.Port == 0 {
		switch {
		case a.Port != 0:
			t.Port = uint16(a.Port)
		case t.TLS:
			t.Port = 443
		default:
			t.Port = 80
		}
	}
	if !strings.HasPrefix(t.Path, "/") {
		t.Path = "/" + t.Path
	}

	return t, nil
}

func (t Target) Scheme() string {
	if t.TLS {
		return "https"
	}
	return "http"
}

func (t Target) defaultPort() uint16 {
	if t.TLS {
		return 443
	}
	return 80
}

// HostHeader is the Host header value: the port is omitted when it is the
// scheme default, IPv6 literals are bracketed.
func (t Target) HostHeader() string {
	if t.Port != t.defaultPort() {
		return net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
	}
	if strings.Contains(t.Host, ":") {
		return "[" + t.Host + "]"
	}
	return t.Host
}

// URL is the canonical form used for display and as the proxy request URI.
func (t Target) URL() string {
	return fmt.Sprintf("%s://%s%s", t.Scheme(), t.HostHeader(), t.Path)
}
