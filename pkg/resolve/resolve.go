// Package resolve checks that rule list hosts resolve before they are fetched.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/miekg/dns"

	"blockagg/pkg/dnscache"
	"blockagg/pkg/fetch"
)

const defaultTimeout = 2 * time.Second

// ErrNoAddress is returned when a host has neither A nor AAAA records.
var ErrNoAddress = errors.New("host has no addresses")

// Resolver queries a list of DNS servers in order, moving to the next one
// when a server does not answer. Replies are cached for their TTL.
type Resolver struct {
	servers []string
	client  *dns.Client
	cache   *dnscache.DNSCache
	log     *slog.Logger
}

// New returns a Resolver for server, given as host or host:port.
func New(server string, timeout time.Duration) *Resolver {
	return NewWithServers([]string{server}, timeout, nil)
}

// NewWithServers returns a Resolver trying each server in turn.
func NewWithServers(servers []string, timeout time.Duration, log *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	normalized := make([]string, 0, len(servers))
	for _, server := range servers {
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
		normalized = append(normalized, server)
	}
	return &Resolver{
		servers: normalized,
		client:  &dns.Client{Timeout: timeout},
		cache:   dnscache.New(log),
		log:     log,
	}
}

// FromResolvConf returns a Resolver for the nameservers listed in a
// resolv.conf style file.
func FromResolvConf(path string, timeout time.Duration) (*Resolver, error) {
	cfg, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("%s lists no nameservers", path)
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, server := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(server, cfg.Port))
	}
	return NewWithServers(servers, timeout, nil), nil
}

// Server returns the first address queries are sent to.
func (r *Resolver) Server() string {
	if len(r.servers) == 0 {
		return ""
	}
	return r.servers[0]
}

// CacheLen returns the number of cached replies.
func (r *Resolver) CacheLen() int {
	return r.cache.Len()
}

// Host returns the IPv4 and IPv6 addresses of host.
func (r *Resolver) Host(ctx context.Context, host string) ([]string, error) {
	var ipAddresses []string
	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		resp, err := r.query(ctx, host, qtype)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s: %s", host, dns.RcodeToString[resp.Rcode])
			continue
		}
		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				ipAddresses = append(ipAddresses, rec.A.String())
			case *dns.AAAA:
				ipAddresses = append(ipAddresses, rec.AAAA.String())
			}
		}
	}
	if len(ipAddresses) > 0 {
		return ipAddresses, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoAddress, lastErr)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoAddress, host)
}

func (r *Resolver) query(ctx context.Context, host string, qtype uint16) (*dns.Msg, error) {
	key := dnscache.Key(host, qtype)
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err == nil {
			r.cache.Set(key, resp)
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		r.log.Debug("resolver did not answer, trying next server", "server", server, "error", err)
	}
	if lastErr == nil {
		lastErr = errors.New("no resolver configured")
	}
	return nil, lastErr
}

// CheckLocation verifies that the host of an http(s) location resolves.
// Local paths and IP literals pass without a query.
func (r *Resolver) CheckLocation(ctx context.Context, location string) error {
	if !fetch.IsURL(location) {
		return nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("parse location: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("location %s has no host", location)
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	_, err = r.Host(ctx, host)
	return err
}
