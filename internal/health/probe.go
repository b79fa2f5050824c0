package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Endpoint identifies the supervised server's listener.
// It is fixed for the lifetime of a supervisor.
type Endpoint struct {
	Host string
	Port int

	// BaseURL is the full URL polled for readiness. Its host and port must
	// agree with Host and Port.
	BaseURL string
}

// Addr returns the host:port dial address.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String implements fmt.Stringer.
func (e Endpoint) String() string {
	return e.Addr()
}

// Validate checks the endpoint invariants: a non-empty host, a port in
// 1..65535 and an absolute BaseURL whose port (explicit or scheme default)
// matches Port.
func (e Endpoint) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidEndpoint)
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidEndpoint, e.Port)
	}
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: base url: %w", ErrInvalidEndpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base url %q is not absolute", ErrInvalidEndpoint, e.BaseURL)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	if port != strconv.Itoa(e.Port) {
		return fmt.Errorf("%w: base url port %q does not match %d", ErrInvalidEndpoint, port, e.Port)
	}
	return nil
}

// ProbeFunc reports whether the server is reachable right now.
type ProbeFunc func(ctx context.Context) bool

// Probe attempts a TCP connection to addr and reports whether it was
// established within timeout. The connection is closed immediately.
// Refusals, timeouts, cancellation and any other network error yield false.
//
// Probe keeps no state and is safe for concurrent use.
func Probe(ctx context.Context, addr string, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close() //nolint:errcheck // Nothing was written; close errors carry no signal
	return true
}

// Prober is a Probe bound to an endpoint and timeout.
type Prober struct {
	addr    string
	timeout time.Duration
}

// NewProber creates a Prober for ep.
func NewProber(ep Endpoint, timeout time.Duration) *Prober {
	return &Prober{addr: ep.Addr(), timeout: timeout}
}

// Probe performs one bounded reachability check.
func (p *Prober) Probe(ctx context.Context) bool {
	return Probe(ctx, p.addr, p.timeout)
}
