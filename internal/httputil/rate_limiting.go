package httputil

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ddnet/maproom/apierrors"
)

var (
	rateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maproom",
			Subsystem: "http",
			Name:      "rate_limit_rejections",
			Help:      "Total number of requests rejected by rate limiting",
		},
		[]string{"endpoint"},
	)
	rateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maproom",
			Subsystem: "http",
			Name:      "rate_limit_allowed",
			Help:      "Total number of requests allowed by rate limiting",
		},
		[]string{"endpoint"},
	)
)

var registerRateLimiterMetrics sync.Once

func init() {
	registerRateLimiterMetrics.Do(func() {
		prometheus.MustRegister(rateLimitRejections, rateLimitAllowed)
	})
}

type limiterConfig struct {
	threshold int64
	cooloff   time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	config   limiterConfig
	lastSeen time.Time
}

// RateLimitOverride narrows a RateLimitConfig's threshold/cooloff for one
// endpoint path, the same shape the global config uses.
type RateLimitOverride struct {
	Threshold int64
	CooloffMS int64
}

// RateLimitConfig is the `http_burst_size`/`http_rate_limit_delay_ms`
// section of the server config (spec.md §6: "A rate limiter caps burst and
// per-millisecond request rate").
type RateLimitConfig struct {
	Enabled              bool
	Threshold            int64
	CooloffMS            int64
	ExemptIPAddresses    []string
	PerEndpointOverrides map[string]RateLimitOverride
}

// RateLimits is an IP-keyed token bucket limiter with optional per-endpoint
// overrides and static exemptions, built the way the teacher wires
// golang.org/x/time/rate behind a small wrapper.
type RateLimits struct {
	limits        map[string]*limiterEntry
	mutex         sync.RWMutex
	enabled       bool
	defaultConfig limiterConfig
	perEndpoint   map[string]limiterConfig
	exemptIPs     []net.IP
	exemptCIDRs   []*net.IPNet
	cleanupDone   chan struct{}
}

// NewRateLimits builds a limiter from cfg and, if enabled, starts its
// background sweep goroutine.
func NewRateLimits(cfg RateLimitConfig) *RateLimits {
	l := &RateLimits{
		limits:      make(map[string]*limiterEntry),
		enabled:     cfg.Enabled,
		cleanupDone: make(chan struct{}),
		defaultConfig: limiterConfig{
			threshold: cfg.Threshold,
			cooloff:   time.Duration(cfg.CooloffMS) * time.Millisecond,
		},
		perEndpoint: make(map[string]limiterConfig),
	}
	for endpoint, override := range cfg.PerEndpointOverrides {
		l.perEndpoint[endpoint] = limiterConfig{
			threshold: override.Threshold,
			cooloff:   time.Duration(override.CooloffMS) * time.Millisecond,
		}
	}
	for _, ip := range cfg.ExemptIPAddresses {
		if parsed := net.ParseIP(ip); parsed != nil {
			l.exemptIPs = append(l.exemptIPs, parsed)
			continue
		}
		if _, network, err := net.ParseCIDR(ip); err == nil {
			l.exemptCIDRs = append(l.exemptCIDRs, network)
		}
	}
	if l.enabled {
		go l.clean()
	}
	return l
}

// clean periodically drops buckets that haven't been touched recently, so
// a long-running server doesn't accumulate one entry per distinct caller IP
// it has ever seen.
func (l *RateLimits) clean() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-l.cleanupDone:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Minute)

			l.mutex.RLock()
			keysToCheck := make([]string, 0, len(l.limits))
			for key := range l.limits {
				keysToCheck = append(keysToCheck, key)
			}
			l.mutex.RUnlock()

			for _, key := range keysToCheck {
				l.mutex.Lock()
				entry, exists := l.limits[key]
				if exists && entry.lastSeen.Before(cutoff) {
					delete(l.limits, key)
				}
				l.mutex.Unlock()
			}
		}
	}
}

// Stop halts the sweep goroutine. Safe to call multiple times.
func (l *RateLimits) Stop() {
	if !l.enabled || l.cleanupDone == nil {
		return
	}
	select {
	case <-l.cleanupDone:
	default:
		close(l.cleanupDone)
	}
}

// Limit checks whether req's caller may proceed, returning nil if so or a
// 429 JSONResponse carrying the cooloff if not. Called by the HTTP and
// websocket transports before a request reaches the dispatcher.
func (l *RateLimits) Limit(req *http.Request) *JSONResponse {
	endpoint := endpointLabel(req)

	if !l.enabled {
		rateLimitAllowed.WithLabelValues(endpoint).Inc()
		return nil
	}

	ip, _ := requestIP(req)
	caller := ""
	if ip != nil {
		caller = ip.String()
	} else if req != nil {
		caller = req.RemoteAddr
	}

	if l.isExemptIP(ip) {
		rateLimitAllowed.WithLabelValues(endpoint).Inc()
		return nil
	}

	cfg := l.defaultConfig
	limiterKey := caller
	if req != nil {
		if override, ok := l.perEndpoint[req.URL.Path]; ok {
			cfg = override
			limiterKey = caller + "|" + req.URL.Path
		}
	}

	limiter, block := l.getLimiter(limiterKey, cfg)
	if block {
		rateLimitRejections.WithLabelValues(endpoint).Inc()
		return limitExceededResponse(cfg)
	}
	if limiter == nil {
		rateLimitAllowed.WithLabelValues(endpoint).Inc()
		return nil
	}
	if limiter.Allow() {
		rateLimitAllowed.WithLabelValues(endpoint).Inc()
		return nil
	}

	rateLimitRejections.WithLabelValues(endpoint).Inc()
	logrus.WithFields(logrus.Fields{"caller": caller, "endpoint": endpoint}).Debug("rate limit exceeded")
	return limitExceededResponse(cfg)
}

func limitExceededResponse(cfg limiterConfig) *JSONResponse {
	apiErr := apierrors.New(apierrors.KindRateLimited, "too many requests, slow down")
	body := apiErr.Body()
	return &JSONResponse{
		Code: http.StatusTooManyRequests,
		JSON: map[string]interface{}{
			"kind":           body.Kind,
			"message":        body.Message,
			"retry_after_ms": cfg.cooloff.Milliseconds(),
		},
	}
}

// getLimiter returns the bucket for key under cfg, creating it if absent.
// threshold<=0 blocks unconditionally; cooloff<=0 disables limiting for
// that key entirely (useful as a per-endpoint opt-out).
func (l *RateLimits) getLimiter(key string, cfg limiterConfig) (*rate.Limiter, bool) {
	if cfg.threshold <= 0 {
		return nil, true
	}
	if cfg.cooloff <= 0 {
		return nil, false
	}

	burst := int(cfg.threshold)
	if burst < 1 {
		burst = 1
	}
	requestsPerSecond := rate.Limit(float64(cfg.threshold) * float64(time.Second) / float64(cfg.cooloff))
	if requestsPerSecond <= 0 {
		requestsPerSecond = rate.Limit(1)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if entry, ok := l.limits[key]; ok && entry.config == cfg {
		entry.lastSeen = time.Now()
		return entry.limiter, false
	}

	limiter := rate.NewLimiter(requestsPerSecond, burst)
	l.limits[key] = &limiterEntry{limiter: limiter, config: cfg, lastSeen: time.Now()}
	return limiter, false
}

func endpointLabel(req *http.Request) string {
	if req == nil || req.URL == nil {
		return "unknown"
	}
	return req.URL.Path
}

// requestIP extracts the caller's address, trusting X-Forwarded-For only
// when the direct connection is loopback (i.e. a local reverse proxy
// terminated the real connection). The bool return reports whether the IP
// came from that trusted header rather than RemoteAddr.
func requestIP(req *http.Request) (net.IP, bool) {
	if req == nil {
		return nil, false
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	remoteIP := net.ParseIP(strings.TrimSpace(host))
	if remoteIP == nil {
		return nil, false
	}

	forwardedFor := req.Header.Get("X-Forwarded-For")
	if forwardedFor == "" {
		return remoteIP, false
	}
	if !remoteIP.IsLoopback() {
		logrus.WithFields(logrus.Fields{
			"remote_addr":     remoteIP.String(),
			"x_forwarded_for": forwardedFor,
			"request_path":    req.URL.Path,
		}).Debug("ignoring X-Forwarded-For from non-loopback connection")
		return remoteIP, false
	}

	for _, part := range strings.Split(forwardedFor, ",") {
		part = strings.TrimSpace(part)
		if ip := net.ParseIP(part); ip != nil && !ip.IsLoopback() {
			return ip, true
		}
	}
	return remoteIP, false
}

func (l *RateLimits) isExemptIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, exempt := range l.exemptIPs {
		if exempt.Equal(ip) {
			return true
		}
	}
	for _, network := range l.exemptCIDRs {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
