// Package dnscache keeps DNS answers for the lifetime of their TTL so that
// sources sharing a host are resolved once per run.
package dnscache

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

const (
	defaultTTL  = 60 * time.Second
	negativeTTL = 30 * time.Second
	maxTTL      = time.Hour
)

// CacheEntry is a stored reply.
type CacheEntry struct {
	Msg       *dns.Msg
	ExpiresAt time.Time
}

// DNSCache is safe for concurrent use.
type DNSCache struct {
	mu    sync.RWMutex
	cache map[string]CacheEntry
	now   func() time.Time
	log   *slog.Logger
}

// New creates an empty cache.
func New(log *slog.Logger) *DNSCache {
	if log == nil {
		log = slog.Default()
	}
	return &DNSCache{
		cache: make(map[string]CacheEntry),
		now:   time.Now,
		log:   log,
	}
}

// Key returns the cache key of a question.
func Key(name string, qtype uint16) string {
	return strings.ToLower(dns.Fqdn(name)) + "|" + strconv.Itoa(int(qtype))
}

// Get returns a copy of the cached reply for key if it has not expired.
func (c *DNSCache) Get(key string) (*dns.Msg, bool) {
	c.mu.RLock()
	entry, found := c.cache[key]
	c.mu.RUnlock()
	if !found {
		return nil, false
	}
	if c.now().After(entry.ExpiresAt) {
		c.log.Debug("cache expired", "key", key)
		c.mu.Lock()
		delete(c.cache, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.Msg.Copy(), true
}

// Set stores msg under key. The lifetime is the smallest answer TTL, capped
// at one hour; NXDOMAIN and empty replies are kept for 30 seconds.
func (c *DNSCache) Set(key string, msg *dns.Msg) {
	if msg == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = CacheEntry{Msg: msg.Copy(), ExpiresAt: c.now().Add(ttlOf(msg))}
}

// Len returns the number of stored entries, expired ones included.
func (c *DNSCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func ttlOf(msg *dns.Msg) time.Duration {
	if msg.Rcode == dns.RcodeNameError || len(msg.Answer) == 0 {
		return negativeTTL
	}
	ttl := time.Duration(msg.Answer[0].Header().Ttl) * time.Second
	for _, rr := range msg.Answer[1:] {
		if d := time.Duration(rr.Header().Ttl) * time.Second; d < ttl {
			ttl = d
		}
	}
	if ttl <= 0 {
		return defaultTTL
	}
	return min(ttl, maxTTL)
}
