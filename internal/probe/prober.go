package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/httping/httping/internal/config"
	"github.com/httping/httping/internal/output"
	"github.com/httping/httping/internal/shared"
)

// Pinger drives sequential timed HTTP probes against a single target. One
// probe is in flight at a time; the next starts an interval after the
// previous one started.
type Pinger struct {
	args      config.Args
	target    Target
	request   []byte
	resolver  *resolver
	tlsConfig *tls.Config
	bindAddr  *net.TCPAddr

	// Dial destination: the proxy when one is configured, else the target.
	dialHost string
	dialPort uint16

	// Persistent connection carried between probes in keep-alive mode.
	conn *probeConn

	stats        *runStats
	thresholdHit bool
}

// NewPinger validates the arguments and prepares everything a run needs up
// front: the parsed target, the rendered request and the resolver.
func NewPinger(a config.Args) (*Pinger, error) {
	target, err := newTarget(a)
	if err != nil {
		return nil, err
	}
	request, err := buildRequest(a, target)
	if err != nil {
		return nil, err
	}
	bindAddr, err := parseBind(a.Bind)
	if err != nil {
		return nil, err
	}

	p := &Pinger{
		args:     a,
		target:   target,
		request:  request,
		resolver: newResolver(a),
		bindAddr: bindAddr,
		dialHost: target.Host,
		dialPort: target.Port,
		stats:    newRunStats(target.URL()),
	}

	if a.Proxy != "" {
		p.dialHost, p.dialPort, err = splitProxy(a.Proxy)
		if err != nil {
			return nil, err
		}
	}
	if target.TLS {
		p.tlsConfig = &tls.Config{
			ServerName:         target.Host,
			InsecureSkipVerify: a.Insecure,
		}
	}

	return p, nil
}

// Run executes the probe loop until the count is reached, the context is
// cancelled, the TUI is quit or the failure threshold trips. The error
// return covers setup problems only; probe failures land in the summary.
func (p *Pinger) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tui, om, err := p.createOutputs()
	if err != nil {
		return err
	}
	if tui != nil {
		go func() {
			select {
			case <-tui.QuitChan():
				log.Debug("User quit TUI, stopping probes")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	if p.args.ResolveOnce {
		if _, err := p.resolver.resolve(ctx, p.dialHost); err != nil {
			om.Close()
			p.resolver.stop()
			return fmt.Errorf("resolving %s: %w", p.dialHost, err)
		}
	}

	var consecutiveFails uint
	next := time.Now()
	for seq := uint(0); p.args.Count == 0 || seq < p.args.Count; seq++ {
		if seq > 0 && !p.args.Flood {
			if !sleepUntil(ctx, next) {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		next = time.Now().Add(p.args.Interval)

		result := p.probe(ctx, seq)
		if ctx.Err() != nil && !result.OK {
			// Interrupted mid-flight; the aborted attempt is not counted.
			break
		}
		p.stats.record(result)
		om.Record(result)

		if result.OK {
			consecutiveFails = 0
		} else {
			consecutiveFails++
			if p.args.FailThreshold > 0 && consecutiveFails >= p.args.FailThreshold {
				log.Errorf("%d consecutive failures, giving up", consecutiveFails)
				p.thresholdHit = true
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.resolver.stop()

	om.Summary(p.stats.summary())
	return om.Close()
}

// probe performs one full request cycle and returns the timed result. The
// result is never recorded here so an aborted attempt can be discarded.
func (p *Pinger) probe(ctx context.Context, seq uint) shared.Result {
	r := shared.Result{Seq: seq, Timestamp: time.Now()}
	start := time.Now()
	deadline := start.Add(p.args.Timeout)

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	resolveStart := time.Now()
	addr, err := p.resolver.resolve(ctx, p.dialHost)
	if err != nil {
		return failResult(r, start, shared.PhaseResolve, err)
	}
	r.ResolveUS = time.Since(resolveStart).Microseconds()

	pc := p.conn
	p.conn = nil
	if pc != nil {
		r.Reused = true
		r.Addr = pc.c.RemoteAddr().String()
		r.Fingerprint = pc.fingerprint
	} else {
		var phase shared.Phase
		pc, phase, err = p.connect(ctx, addr, &r)
		if err != nil {
			return failResult(r, start, phase, err)
		}
	}

	reusable, phase, err := p.exchange(pc, start, deadline, &r)
	if err != nil && r.Reused && staleConn(err) {
		// The idle connection died between probes; one fresh dial, marked
		// as a reconnect.
		log.Debugf("Persistent connection went stale (%v), reconnecting", err)
		pc.Close()
		r.Reused = false
		r.Reconnected = true
		pc, phase, err = p.connect(ctx, addr, &r)
		if err != nil {
			return failResult(r, start, phase, err)
		}
		reusable, phase, err = p.exchange(pc, start, deadline, &r)
	}
	if err != nil {
		pc.Close()
		return failResult(r, start, phase, err)
	}

	if p.args.KeepAlive && reusable {
		p.conn = pc
	} else {
		pc.Close()
	}

	return r
}

// Summary returns the aggregate state of the run so far.
func (p *Pinger) Summary() shared.RunSummary {
	return p.stats.summary()
}

// ThresholdExceeded reports whether the run stopped because the consecutive
// failure threshold was reached.
func (p *Pinger) ThresholdExceeded() bool {
	return p.thresholdHit
}

// createOutputs creates and registers the output handlers.
// Returns the TUIOutput instance (may be nil) and the OutputManager.
func (p *Pinger) createOutputs() (*output.TUIOutput, *output.OutputManager, error) {
	om := &output.OutputManager{}

	info := shared.OutputInfo{
		URL:       p.target.URL(),
		Host:      p.target.Host,
		Port:      p.target.Port,
		Path:      p.target.Path,
		TLS:       p.target.TLS,
		Method:    p.args.Method(),
		Count:     p.args.Count,
		Interval:  p.args.Interval,
		KeepAlive: p.args.KeepAlive,
	}

	var tui *output.TUIOutput
	switch {
	case p.args.Json:
		jsonOut, err := output.NewJSONOutput("", p.stats.runID, info.URL) // empty path = stdout
		if err != nil {
			return nil, nil, err
		}
		om.Register(jsonOut)
	case p.args.TUI && term.IsTerminal(int(os.Stdout.Fd())):
		tui = output.NewTUIOutput(info)
		tui.Start()
		om.Register(tui)
	case p.args.Quiet:
		// Exit code only.
	default:
		if p.args.TUI {
			log.Warn("stdout is not a terminal, using plain output")
		}
		om.Register(output.NewTextOutput(os.Stdout, info, output.TextOptions{
			ShowStatusCodes: p.args.ShowStatusCodes,
			Split:           p.args.Split,
			ShowSpeed:       p.args.ShowSpeed,
			ShowBytes:       p.args.ShowBytes,
			Audible:         p.args.Audible,
			Parseable:       p.args.Parseable,
			Verbose:         p.args.Verbose,
			Fingerprint:     p.args.Fingerprint,
			Label:           p.args.Label,
		}))
	}

	if p.args.JsonFile != "" {
		jsonOut, err := output.NewJSONOutput(p.args.JsonFile, p.stats.runID, info.URL)
		if err != nil {
			om.Close()
			return nil, nil, fmt.Errorf("json file: %w", err)
		}
		om.Register(jsonOut)
	}
	if p.args.Chart != "" {
		om.Register(output.NewChartOutput(p.args.Chart))
	}

	return tui, om, nil
}

// sleepUntil blocks until the given time or context cancellation. It reports
// whether the wakeup time was reached.
func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func failResult(r shared.Result, start time.Time, phase shared.Phase, err error) shared.Result {
	r.OK = false
	r.FailPhase = phase
	r.Error = err.Error()
	r.TotalUS = time.Since(start).Microseconds()
	return r
}

// parseBind turns the --bind value, an ip or ip:port, into a local TCP
// address for the dialer.
func parseBind(bind string) (*net.TCPAddr, error) {
	if bind == "" {
		return nil, nil
	}
	if addr, err := netip.ParseAddr(bind); err == nil {
		return net.TCPAddrFromAddrPort(netip.AddrPortFrom(addr, 0)), nil
	}
	ap, err := netip.ParseAddrPort(bind)
	if err != nil {
		return nil, fmt.Errorf("invalid bind address %q", bind)
	}
	return net.TCPAddrFromAddrPort(ap), nil
}

// splitProxy splits the --proxy value into host and port, defaulting to the
// conventional proxy port when none is given.
func splitProxy(proxy string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(proxy)
	if err != nil {
		return proxy, 8080, nil
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid proxy port %q", portStr)
	}
	return host, uint16(port), nil
}
