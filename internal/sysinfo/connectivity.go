package sysinfo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Check results.
const (
	DNSWorking = "working"
	DNSFailed  = "failed"

	GatewayConfigured = "configured"
	GatewayMissing    = "missing"
	GatewayUnknown    = "unknown"

	InternetReachable   = "reachable"
	InternetUnreachable = "unreachable"
)

// Connectivity is the outcome of the quick network checks.
type Connectivity struct {
	DNS      string `json:"dns"`
	Gateway  string `json:"gateway"`
	Internet string `json:"internet"`
}

func (c Connectivity) String() string {
	return fmt.Sprintf("DNS=%s, gateway=%s, internet=%s", c.DNS, c.Gateway, c.Internet)
}

// NetChecker runs the connectivity checks. Zero fields take the defaults
// of DefaultNetChecker.
type NetChecker struct {
	LookupHost   func(ctx context.Context, host string) ([]string, error)
	Dial         func(ctx context.Context, network, addr string) (net.Conn, error)
	RouteFile    string
	DNSHost      string
	InternetAddr string
	Timeout      time.Duration
}

func DefaultNetChecker() NetChecker {
	var d net.Dialer
	return NetChecker{
		LookupHost:   net.DefaultResolver.LookupHost,
		Dial:         d.DialContext,
		RouteFile:    "/proc/net/route",
		DNSHost:      "example.com",
		InternetAddr: "1.1.1.1:53",
		Timeout:      1500 * time.Millisecond,
	}
}

func (n NetChecker) withDefaults() NetChecker {
	d := DefaultNetChecker()
	if n.LookupHost == nil {
		n.LookupHost = d.LookupHost
	}
	if n.Dial == nil {
		n.Dial = d.Dial
	}
	if n.RouteFile == "" {
		n.RouteFile = d.RouteFile
	}
	if n.DNSHost == "" {
		n.DNSHost = d.DNSHost
	}
	if n.InternetAddr == "" {
		n.InternetAddr = d.InternetAddr
	}
	if n.Timeout <= 0 {
		n.Timeout = d.Timeout
	}
	return n
}

// Check runs the DNS, gateway and internet checks concurrently. Each
// network check is bounded by Timeout.
func (n NetChecker) Check(ctx context.Context) Connectivity {
	n = n.withDefaults()
	res := Connectivity{DNS: DNSFailed, Gateway: GatewayUnknown, Internet: InternetUnreachable}

	var g errgroup.Group
	g.Go(func() error {
		ctx, cancel := context.WithTimeout(ctx, n.Timeout)
		defer cancel()
		if addrs, err := n.LookupHost(ctx, n.DNSHost); err == nil && len(addrs) > 0 {
			res.DNS = DNSWorking
		}
		return nil
	})
	g.Go(func() error {
		res.Gateway = defaultRoute(n.RouteFile)
		return nil
	})
	g.Go(func() error {
		ctx, cancel := context.WithTimeout(ctx, n.Timeout)
		defer cancel()
		if conn, err := n.Dial(ctx, "tcp", n.InternetAddr); err == nil {
			conn.Close()
			res.Internet = InternetReachable
		}
		return nil
	})
	_ = g.Wait()
	return res
}

func defaultRoute(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return GatewayUnknown
	}
	defer f.Close()
	if HasDefaultRoute(f) {
		return GatewayConfigured
	}
	return GatewayMissing
}

// HasDefaultRoute reports whether a /proc/net/route table holds a route
// with an all-zero destination and mask.
func HasDefaultRoute(r io.Reader) bool {
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		f := strings.Fields(sc.Text())
		if len(f) >= 8 && f[1] == "00000000" && f[7] == "00000000" {
			return true
		}
	}
	return false
}

// Cached serves a provider's snapshot for ttl so repeated prompts in one
// run do not repeat the network checks.
type Cached struct {
	p   Provider
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	info Info
	at   time.Time
	ok   bool
}

func NewCached(p Provider, ttl time.Duration) *Cached {
	return &Cached{p: p, ttl: ttl, now: time.Now}
}

// Info holds the lock across the refresh, so concurrent callers share one
// collection. Errors are not cached.
func (c *Cached) Info(ctx context.Context) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ok && c.now().Sub(c.at) < c.ttl {
		return c.info, nil
	}
	info, err := c.p.Info(ctx)
	if err != nil {
		return info, err
	}
	c.info, c.at, c.ok = info, c.now(), true
	return info, nil
}
