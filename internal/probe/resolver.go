package probe

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"

	"github.com/httping/httping/internal/config"
)

// resolver turns the target hostname into an address once per probe, with
// optional caching so steady-state probes skip the lookup round trip.
type resolver struct {
	cache   *ttlcache.Cache[string, netip.Addr]
	network string // ip, ip4 or ip6
	once    bool
}

func newResolver(a config.Args) *resolver {
	r := &resolver{network: "ip", once: a.ResolveOnce}
	if a.ForceIPv4 {
		r.network = "ip4"
	}
	if a.ForceIPv6 {
		r.network = "ip6"
	}

	if a.ResolveOnce || a.DNSCache > 0 {
		ttl := a.DNSCache
		if a.ResolveOnce {
			ttl = ttlcache.NoTTL
		}
		r.cache = ttlcache.New(
			ttlcache.WithTTL[string, netip.Addr](ttl),
			ttlcache.WithDisableTouchOnHit[string, netip.Addr](),
		)
		go r.cache.Start()
	}

	return r
}

// resolve returns the usable address for host, honoring the forced address
// family. Literal addresses never hit the resolver.
func (r *resolver) resolve(ctx context.Context, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		switch {
		case r.network == "ip4" && !addr.Is4():
			return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", host)
		case r.network == "ip6" && !addr.Is6():
			return netip.Addr{}, fmt.Errorf("%s is not an IPv6 address", host)
		}
		return addr, nil
	}

	if r.cache != nil {
		if item := r.cache.Get(host); item != nil {
			return item.Value(), nil
		}
	}

	start := time.Now()
	addrs, err := net.DefaultResolver.LookupNetIP(ctx, r.network, host)
	if err != nil {
		return netip.Addr{}, err
	}

	// Find the first address that meets our criteria
	for _, addr := range addrs {
		addr = addr.Unmap()
		switch {
		case r.network == "ip4" && !addr.Is4():
			continue
		case r.network == "ip6" && !addr.Is6():
			continue
		}
		log.Debugf("Resolved %s to %s in %v", host, addr, time.Since(start))
		if r.cache != nil {
			r.cache.Set(host, addr, ttlcache.DefaultTTL)
		}
		return addr, nil
	}

	return netip.Addr{}, fmt.Errorf("no usable address for %s", host)
}

func (r *resolver) stop() {
	if r.cache != nil {
		r.cache.Stop()
	}
}
