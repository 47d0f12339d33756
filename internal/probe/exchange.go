package probe

import (
	"bufio"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/httping/httping/internal/shared"
)

// probeConn is a live connection that keep-alive mode carries from one probe
// to the next.
type probeConn struct {
	c           net.Conn
	br          *bufio.Reader
	fingerprint string
}

func (pc *probeConn) Close() error {
	return pc.c.Close()
}

// connect dials the probe address and, for https targets, completes the TLS
// handshake. Phase durations and the certificate fingerprint are written
// into r as they become known.
func (p *Pinger) connect(ctx context.Context, addr netip.Addr, r *shared.Result) (*probeConn, shared.Phase, error) {
	dialer := net.Dialer{LocalAddr: p.bindAddr}
	hostPort := net.JoinHostPort(addr.String(), strconv.Itoa(int(p.dialPort)))

	connectStart := time.Now()
	netConn, err := dialer.DialContext(ctx, p.network(), hostPort)
	if err != nil {
		return nil, shared.PhaseConnect, err
	}
	r.ConnectUS = time.Since(connectStart).Microseconds()
	r.Addr = hostPort

	if p.tlsConfig != nil {
		tlsStart := time.Now()
		tlsConn := tls.Client(netConn, p.tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			netConn.Close()
			return nil, shared.PhaseTLS, err
		}
		r.TLSUS = time.Since(tlsStart).Microseconds()
		if certs := tlsConn.ConnectionState().PeerCertificates; len(certs) > 0 {
			r.Fingerprint = certFingerprint(certs[0])
		}
		netConn = tlsConn
	}

	log.Debugf("Connected to %s in %dus", hostPort, r.ConnectUS)
	return &probeConn{c: netConn, br: bufio.NewReader(netConn), fingerprint: r.Fingerprint}, "", nil
}

// exchange writes the request and reads the full response on an established
// connection. It returns whether the connection survives for another probe,
// and on failure the phase the error belongs to.
func (p *Pinger) exchange(pc *probeConn, start time.Time, deadline time.Time, r *shared.Result) (bool, shared.Phase, error) {
	if err := pc.c.SetDeadline(deadline); err != nil {
		return false, shared.PhaseSend, err
	}

	if _, err := pc.c.Write(p.request); err != nil {
		return false, shared.PhaseSend, err
	}
	r.BytesOut = int64(len(p.request))

	// The first response byte lands in the buffer here; everything after is
	// parsing, not waiting.
	if _, err := pc.br.Peek(1); err != nil {
		return false, shared.PhaseReceive, err
	}
	r.TTFBUS = time.Since(start).Microseconds()

	info, err := readResponse(pc.br, p.args.Method(), p.args.DataLimit)
	if err != nil {
		return false, shared.PhaseReceive, err
	}

	r.StatusCode = info.Status
	r.HeaderBytes = info.HeaderBytes
	r.BodyBytes = info.BodyBytes
	r.TotalUS = time.Since(start).Microseconds()
	r.OK = p.okCode(info.Status)

	return info.Reusable, "", nil
}

// network maps the forced address family to a dial network.
func (p *Pinger) network() string {
	switch {
	case p.args.ForceIPv4:
		return "tcp4"
	case p.args.ForceIPv6:
		return "tcp6"
	default:
		return "tcp"
	}
}

func (p *Pinger) okCode(status int) bool {
	for _, code := range p.args.OKCodes {
		if status == code {
			return true
		}
	}
	return false
}

// staleConn reports whether an error on a reused connection looks like the
// server dropped it between probes, which warrants one fresh dial.
func staleConn(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// certFingerprint renders the SHA-256 digest of the certificate in the
// colon-separated form openssl prints.
func certFingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	out := make([]byte, 0, len(sum)*3)
	for i, b := range sum {
		if i > 0 {
			out = append(out, ':')
		}
		out = fmt.Appendf(out, "%02x", b)
	}
	return string(out)
}
