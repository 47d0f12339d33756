package probe

import (
	"strings"
	"testing"

	"github.com/httping/httping/internal/config"
)

func TestNewTarget(t *testing.T) {
	tests := []struct {
		name    string
		args    config.Args
		want    Target
		wantErr string
	}{
		{
			name: "bare host",
			args: config.Args{Target: "example.com", Path: "/"},
			want: Target{Host: "example.com", Port: 80, Path: "/"},
		},
		{
			name: "bare host with ssl",
			args: config.Args{Target: "example.com", Path: "/", SSL: true},
			want: Target{Host: "example.com", Port: 443, Path: "/", TLS: true},
		},
		{
			name: "bare host with port",
			args: config.Args{Target: "example.com:8080", Path: "/"},
			want: Target{Host: "example.com", Port: 8080, Path: "/"},
		},
		{
			name: "port flag",
			args: config.Args{Target: "example.com", Path: "/", Port: 8888},
			want: Target{Host: "example.com", Port: 8888, Path: "/"},
		},
		{
			name: "explicit port beats port flag",
			args: config.Args{Target: "example.com:8080", Path: "/", Port: 9999},
			want: Target{Host: "example.com", Port: 8080, Path: "/"},
		},
		{
			name: "path flag",
			args: config.Args{Target: "example.com", Path: "/health"},
			want: Target{Host: "example.com", Port: 80, Path: "/health"},
		},
		{
			name: "path flag without leading slash",
			args: config.Args{Target: "example.com", Path: "health"},
			want: Target{Host: "example.com", Port: 80, Path: "/health"},
		},
		{
			name: "http URL",
			args: config.Args{Target: "http://example.com"},
			want: Target{Host: "example.com", Port: 80, Path: "/"},
		},
		{
			name: "https URL with path and query",
			args: config.Args{Target: "https://example.com/status?probe=1"},
			want: Target{Host: "example.com", Port: 443, Path: "/status?probe=1", TLS: true},
		},
		{
			name: "URL with explicit port",
			args: config.Args{Target: "http://example.com:8080/x"},
			want: Target{Host: "example.com", Port: 8080, Path: "/x"},
		},
		{
			name: "URL via --url flag",
			args: config.Args{URL: "https://example.com/"},
			want: Target{Host: "example.com", Port: 443, Path: "/", TLS: true},
		},
		{
			name: "IPv4 literal",
			args: config.Args{Target: "192.0.2.1", Path: "/"},
			want: Target{Host: "192.0.2.1", Port: 80, Path: "/"},
		},
		{
			name: "IPv6 literal without port",
			args: config.Args{Target: "2001:db8::1", Path: "/"},
			want: Target{Host: "2001:db8::1", Port: 80, Path: "/"},
		},
		{
			name: "IPv6 literal with port",
			args: config.Args{Target: "[2001:db8::1]:8080", Path: "/"},
			want: Target{Host: "2001:db8::1", Port: 8080, Path: "/"},
		},
		{
			name: "URL with IPv6 host",
			args: config.Args{Target: "http://[2001:db8::1]:8080/"},
			want: Target{Host: "2001:db8::1", Port: 8080, Path: "/"},
		},
		{
			name:    "unsupported scheme",
			args:    config.Args{Target: "ftp://example.com/"},
			wantErr: "unsupported scheme",
		},
		{
			name:    "bad port in URL",
			args:    config.Args{Target: "http://example.com:99999/"},
			wantErr: "invalid port",
		},
		{
			name:    "bad port in target",
			args:    config.Args{Target: "example.com:notaport"},
			wantErr: "invalid port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newTarget(tt.args)

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("newTarget() expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("newTarget() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("newTarget() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("newTarget() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTarget_HostHeader(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   string
	}{
		{
			name:   "default http port omitted",
			target: Target{Host: "example.com", Port: 80},
			want:   "example.com",
		},
		{
			name:   "default https port omitted",
			target: Target{Host: "example.com", Port: 443, TLS: true},
			want:   "example.com",
		},
		{
			name:   "https over non-default port",
			target: Target{Host: "example.com", Port: 80, TLS: true},
			want:   "example.com:80",
		},
		{
			name:   "custom port kept",
			target: Target{Host: "example.com", Port: 8080},
			want:   "example.com:8080",
		},
		{
			name:   "IPv6 literal bracketed",
			target: Target{Host: "2001:db8::1", Port: 80},
			want:   "[2001:db8::1]",
		},
		{
			name:   "IPv6 literal with custom port",
			target: Target{Host: "2001:db8::1", Port: 8080},
			want:   "[2001:db8::1]:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.target.HostHeader(); got != tt.want {
				t.Errorf("HostHeader() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTarget_URL(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   string
	}{
		{
			name:   "plain http",
			target: Target{Host: "example.com", Port: 80, Path: "/"},
			want:   "http://example.com/",
		},
		{
			name:   "https with path",
			target: Target{Host: "example.com", Port: 443, Path: "/status", TLS: true},
			want:   "https://example.com/status",
		},
		{
			name:   "custom port shown",
			target: Target{Host: "example.com", Port: 8080, Path: "/"},
			want:   "http://example.com:8080/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.target.URL(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}
