package probe

import (
	"bufio"
	"strings"
	"testing"

	"github.com/httping/httping/internal/config"
)

func TestBuildRequest(t *testing.T) {
	target := Target{Host: "example.com", Port: 80, Path: "/"}

	tests := []struct {
		name       string
		args       config.Args
		target     Target
		wantLines  []string
		wantAbsent []string
		wantErr    bool
	}{
		{
			name:   "minimal HEAD",
			args:   config.Args{UserAgent: "HTTPing v2.9"},
			target: target,
			wantLines: []string{
				"HEAD / HTTP/1.1",
				"Host: example.com",
				"User-Agent: HTTPing v2.9",
				"Connection: close",
			},
			wantAbsent: []string{"Referer:", "Accept-Encoding:", "Pragma:"},
		},
		{
			name:   "GET with keep-alive",
			args:   config.Args{UserAgent: "x", Get: true, KeepAlive: true},
			target: target,
			wantLines: []string{
				"GET / HTTP/1.1",
				"Connection: keep-alive",
			},
		},
		{
			name:   "proxy uses absolute URI",
			args:   config.Args{UserAgent: "x", Proxy: "proxy.local:8080"},
			target: Target{Host: "example.com", Port: 8080, Path: "/x"},
			wantLines: []string{
				"HEAD http://example.com:8080/x HTTP/1.1",
				"Host: example.com:8080",
			},
		},
		{
			name: "optional headers",
			args: config.Args{
				UserAgent: "x",
				Referer:   "http://monitor.local/",
				Compress:  true,
				NoCache:   true,
				Headers:   []string{"X-Probe: yes", "Authorization:Bearer t"},
			},
			target: target,
			wantLines: []string{
				"Referer: http://monitor.local/",
				"Accept-Encoding: gzip",
				"Pragma: no-cache",
				"Cache-Control: no-cache",
				"X-Probe: yes",
				"Authorization: Bearer t",
			},
		},
		{
			name:    "malformed extra header",
			args:    config.Args{UserAgent: "x", Headers: []string{"NoColonHere"}},
			target:  target,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildRequest(tt.args, tt.target)

			if tt.wantErr {
				if err == nil {
					t.Fatal("buildRequest() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildRequest() unexpected error: %v", err)
			}

			req := string(got)
			if !strings.HasSuffix(req, "\r\n\r\n") {
				t.Error("request must end with a blank line")
			}
			for _, line := range tt.wantLines {
				if !strings.Contains(req, line+"\r\n") {
					t.Errorf("request missing line %q:\n%s", line, req)
				}
			}
			for _, s := range tt.wantAbsent {
				if strings.Contains(req, s) {
					t.Errorf("request should not contain %q:\n%s", s, req)
				}
			}
		})
	}
}

func TestParseStatusLine(t *testing.T) {
	tests := []struct {
		line       string
		wantProto  string
		wantStatus int
		wantReason string
		wantErr    bool
	}{
		{line: "HTTP/1.1 200 OK", wantProto: "HTTP/1.1", wantStatus: 200, wantReason: "OK"},
		{line: "HTTP/1.0 404 Not Found", wantProto: "HTTP/1.0", wantStatus: 404, wantReason: "Not Found"},
		{line: "HTTP/1.1 204", wantProto: "HTTP/1.1", wantStatus: 204, wantReason: ""},
		{line: "HTTP/1.1 99 Too Low", wantErr: true},
		{line: "HTTP/1.1 abc Nope", wantErr: true},
		{line: "SPDY/3 200 OK", wantErr: true},
		{line: "garbage", wantErr: true},
		{line: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			proto, status, reason, err := parseStatusLine(tt.line)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseStatusLine(%q) expected error, got nil", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseStatusLine(%q) unexpected error: %v", tt.line, err)
			}
			if proto != tt.wantProto || status != tt.wantStatus || reason != tt.wantReason {
				t.Errorf("parseStatusLine(%q) = (%q, %d, %q), want (%q, %d, %q)",
					tt.line, proto, status, reason, tt.wantProto, tt.wantStatus, tt.wantReason)
			}
		})
	}
}

func TestReadResponse(t *testing.T) {
	tests := []struct {
		name            string
		raw             string
		method          string
		limit           int64
		wantStatus      int
		wantHeaderBytes int64
		wantBodyBytes   int64
		wantReusable    bool
		wantErr         bool
	}{
		{
			name:            "content-length body",
			raw:             "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello",
			method:          "GET",
			wantStatus:      200,
			wantHeaderBytes: 38, // status line 17 + header 19 + blank 2
			wantBodyBytes:   5,
			wantReusable:    true,
		},
		{
			name:          "HEAD ignores content-length",
			raw:           "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n",
			method:        "HEAD",
			wantStatus:    200,
			wantBodyBytes: 0,
			wantReusable:  true,
		},
		{
			name:          "204 has no body",
			raw:           "HTTP/1.1 204 No Content\r\nContent-Length: 10\r\n\r\n",
			method:        "GET",
			wantStatus:    204,
			wantBodyBytes: 0,
			wantReusable:  true,
		},
		{
			name:          "chunked body",
			raw:           "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n",
			method:        "GET",
			wantStatus:    200,
			wantBodyBytes: 15, // size lines, data, terminator with CRLFs
			wantReusable:  true,
		},
		{
			name:          "body to EOF spends the connection",
			raw:           "HTTP/1.1 200 OK\r\n\r\nuntil the end",
			method:        "GET",
			wantStatus:    200,
			wantBodyBytes: 13,
			wantReusable:  false,
		},
		{
			name:          "connection close requested",
			raw:           "HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nok",
			method:        "GET",
			wantStatus:    200,
			wantBodyBytes: 2,
			wantReusable:  false,
		},
		{
			name:          "HTTP/1.0 defaults to close",
			raw:           "HTTP/1.0 200 OK\r\nContent-Length: 2\r\n\r\nok",
			method:        "GET",
			wantStatus:    200,
			wantBodyBytes: 2,
			wantReusable:  false,
		},
		{
			name:          "HTTP/1.0 with keep-alive",
			raw:           "HTTP/1.0 200 OK\r\nContent-Length: 2\r\nConnection: keep-alive\r\n\r\nok",
			method:        "GET",
			wantStatus:    200,
			wantBodyBytes: 2,
			wantReusable:  true,
		},
		{
			name:          "data limit truncates and spends the connection",
			raw:           "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\n0123456789",
			method:        "GET",
			limit:         4,
			wantStatus:    200,
			wantBodyBytes: 4,
			wantReusable:  false,
		},
		{
			name:       "non-ok status parses fine",
			raw:        "HTTP/1.1 503 Service Unavailable\r\nContent-Length: 0\r\n\r\n",
			method:     "GET",
			wantStatus: 503,
			// keep-alive still honored on error statuses
			wantReusable: true,
		},
		{
			name:    "truncated header",
			raw:     "HTTP/1.1 200 OK\r\nContent-Le",
			method:  "GET",
			wantErr: true,
		},
		{
			name:    "short body",
			raw:     "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nabc",
			method:  "GET",
			wantErr: true,
		},
		{
			name:    "garbage status line",
			raw:     "ICY 200 OK\r\n\r\n",
			method:  "GET",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br := bufio.NewReader(strings.NewReader(tt.raw))
			info, err := readResponse(br, tt.method, tt.limit)

			if tt.wantErr {
				if err == nil {
					t.Fatal("readResponse() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("readResponse() unexpected error: %v", err)
			}

			if info.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", info.Status, tt.wantStatus)
			}
			if tt.wantHeaderBytes != 0 && info.HeaderBytes != tt.wantHeaderBytes {
				t.Errorf("HeaderBytes = %d, want %d", info.HeaderBytes, tt.wantHeaderBytes)
			}
			if info.BodyBytes != tt.wantBodyBytes {
				t.Errorf("BodyBytes = %d, want %d", info.BodyBytes, tt.wantBodyBytes)
			}
			if info.Reusable != tt.wantReusable {
				t.Errorf("Reusable = %v, want %v", info.Reusable, tt.wantReusable)
			}
		})
	}
}

func TestReadResponse_HeaderValues(t *testing.T) {
	raw := "HTTP/1.1 301 Moved Permanently\r\n" +
		"Location: https://example.com/\r\n" +
		"Server: nginx\r\n" +
		"Content-Length: 0\r\n" +
		"\r\n"
	br := bufio.NewReader(strings.NewReader(raw))

	info, err := readResponse(br, "HEAD", 0)
	if err != nil {
		t.Fatalf("readResponse() unexpected error: %v", err)
	}

	if info.Reason != "Moved Permanently" {
		t.Errorf("Reason = %q, want %q", info.Reason, "Moved Permanently")
	}
	if got := info.Header["location"]; got != "https://example.com/" {
		t.Errorf("Header[location] = %q, want the redirect URL", got)
	}
	if got := info.Header["server"]; got != "nginx" {
		t.Errorf("Header[server] = %q, want nginx", got)
	}
}
