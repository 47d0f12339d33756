package probe

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/httping/httping/internal/config"
)

// buildRequest renders the fixed HTTP/1.1 request once per run. The request
// is identical for every probe, so the bytes are reused.
func buildRequest(a config.Args, t Target) ([]byte, error) {
	uri := t.Path
	if a.Proxy != "" {
		// Proxies take the absolute form.
		uri = t.URL()
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", a.Method(), uri)
	fmt.Fprintf(&b, "Host: %s\r\n", t.HostHeader())
	fmt.Fprintf(&b, "User-Agent: %s\r\n", a.UserAgent)
	if a.Referer != "" {
		fmt.Fprintf(&b, "Referer: %s\r\n", a.Referer)
	}
	if a.Compress {
		b.WriteString("Accept-Encoding: gzip\r\n")
	}
	if a.NoCache {
		b.WriteString("Pragma: no-cache\r\n")
		b.WriteString("Cache-Control: no-cache\r\n")
	}
	for _, h := range a.Headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("malformed header %q, want 'Name: value'", h)
		}
		fmt.Fprintf(&b, "%s: %s\r\n", strings.TrimSpace(name), strings.TrimSpace(value))
	}
	if a.KeepAlive {
		b.WriteString("Connection: keep-alive\r\n")
	} else {
		b.WriteString("Connection: close\r\n")
	}
	b.WriteString("\r\n")

	return b.Bytes(), nil
}

// responseInfo is the parsed response with wire-level byte accounting.
// Reusable reports whether the connection may carry another request: the
// server must allow it and the body must have been consumed completely.
type responseInfo struct {
	Proto       string
	Status      int
	Reason      string
	Header      map[string]string
	HeaderBytes int64
	BodyBytes   int64
	Reusable    bool
}

// readResponse parses the status line, headers and body framing from br.
// The body is discarded but counted; limit > 0 stops reading the body after
// that many bytes, which spends the connection.
func readResponse(br *bufio.Reader, method string, limit int64) (*responseInfo, error) {
	line, n, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("reading status line: %w", err)
	}
	info := &responseInfo{
		Header:      make(map[string]string),
		HeaderBytes: n,
	}
	info.Proto, info.Status, info.Reason, err = parseStatusLine(line)
	if err != nil {
		return nil, err
	}

	for {
		line, n, err := readLine(br)
		info.HeaderBytes += n
		if err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		info.Header[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	info.Reusable = wantsKeepAlive(info)

	// HEAD responses and a few status codes never carry a body, whatever
	// the headers claim.
	if method == "HEAD" || info.Status/100 == 1 || info.Status == 204 || info.Status == 304 {
		return info, nil
	}

	switch {
	case strings.EqualFold(info.Header["transfer-encoding"], "chunked"):
		n, drained, err := readChunked(br, limit)
		info.BodyBytes = n
		if err != nil {
			return nil, fmt.Errorf("reading chunked body: %w", err)
		}
		if !drained {
			info.Reusable = false
		}
	case info.Header["content-length"] != "":
		length, err := strconv.ParseInt(info.Header["content-length"], 10, 64)
		if err != nil || length < 0 {
			return nil, fmt.Errorf("bad content-length %q", info.Header["content-length"])
		}
		want := length
		if limit > 0 && limit < length {
			want = limit
			info.Reusable = false
		}
		n, err := io.CopyN(io.Discard, br, want)
		info.BodyBytes = n
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
	default:
		// No framing, the body runs to connection close.
		info.Reusable = false
		var r io.Reader = br
		if limit > 0 {
			r = io.LimitReader(br, limit)
		}
		n, err := io.Copy(io.Discard, r)
		info.BodyBytes = n
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
	}

	return info, nil
}

// readLine reads one CRLF-terminated line and returns it without the line
// ending, plus the number of raw bytes consumed.
func readLine(br *bufio.Reader) (string, int64, error) {
	line, err := br.ReadString('\n')
	n := int64(len(line))
	if err != nil {
		return "", n, err
	}
	return strings.TrimRight(line, "\r\n"), n, nil
}

func parseStatusLine(line string) (proto string, status int, reason string, err error) {
	proto, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return "", 0, "", fmt.Errorf("malformed status line %q", line)
	}
	code, reason, _ := strings.Cut(rest, " ")
	status, err = strconv.Atoi(code)
	if err != nil || status < 100 || status > 599 {
		return "", 0, "", fmt.Errorf("malformed status code %q", code)
	}
	return proto, status, reason, nil
}

// readChunked discards a chunked body, counting every byte on the wire
// including chunk size lines and trailers. It reports whether the body was
// consumed to the terminating chunk.
func readChunked(br *bufio.Reader, limit int64) (int64, bool, error) {
	var total int64
	for {
		line, n, err := readLine(br)
		total += n
		if err != nil {
			return total, false, err
		}
		sizeField, _, _ := strings.Cut(line, ";")
		size, err := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
		if err != nil || size < 0 {
			return total, false, fmt.Errorf("bad chunk size %q", line)
		}
		if size == 0 {
			break
		}
		// Chunk data plus its trailing CRLF.
		copied, err := io.CopyN(io.Discard, br, size+2)
		total += copied
		if err != nil {
			return total, false, err
		}
		if limit > 0 && total >= limit {
			return total, false, nil
		}
	}
	for {
		line, n, err := readLine(br)
		total += n
		if err != nil {
			return total, false, err
		}
		if line == "" {
			return total, true, nil
		}
	}
}

// wantsKeepAlive interprets the Connection header against the protocol
// version's default.
func wantsKeepAlive(info *responseInfo) bool {
	conn := strings.ToLower(info.Header["connection"])
	switch {
	case strings.Contains(conn, "close"):
		return false
	case info.Proto == "HTTP/1.0":
		return strings.Contains(conn, "keep-alive")
	default:
		return true
	}
}
