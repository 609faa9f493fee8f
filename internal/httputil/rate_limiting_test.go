package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRateLimitsTokenBucketEnforcesThreshold(t *testing.T) {
	rateLimitAllowed.Reset()
	rateLimitRejections.Reset()

	limits := NewRateLimits(RateLimitConfig{
		Enabled:   true,
		Threshold: 2,
		CooloffMS: 50,
	})

	req := httptest.NewRequest(http.MethodGet, "https://example.com/test", nil)
	req.RemoteAddr = "198.51.100.1:1234"

	require.Nil(t, limits.Limit(req))
	require.Nil(t, limits.Limit(req))

	resp := limits.Limit(req)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	time.Sleep(2 * 50 * time.Millisecond)

	require.Nil(t, limits.Limit(req))

	require.Equal(t, float64(3), testutil.ToFloat64(rateLimitAllowed.WithLabelValues("/test")))
	require.Equal(t, float64(1), testutil.ToFloat64(rateLimitRejections.WithLabelValues("/test")))
}

func TestRateLimitsPerEndpointOverride(t *testing.T) {
	rateLimitAllowed.Reset()
	rateLimitRejections.Reset()

	limits := NewRateLimits(RateLimitConfig{
		Enabled:   true,
		Threshold: 1,
		CooloffMS: 1000,
		PerEndpointOverrides: map[string]RateLimitOverride{
			"/special": {Threshold: 3, CooloffMS: 1000},
		},
	})

	overrideReq := httptest.NewRequest(http.MethodGet, "https://example.com/special", nil)
	overrideReq.RemoteAddr = "203.0.113.5:4567"

	require.Nil(t, limits.Limit(overrideReq))
	require.Nil(t, limits.Limit(overrideReq))
	require.Nil(t, limits.Limit(overrideReq))

	resp := limits.Limit(overrideReq)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	normalReq := httptest.NewRequest(http.MethodGet, "https://example.com/normal", nil)
	normalReq.RemoteAddr = "203.0.113.5:4568"

	require.Nil(t, limits.Limit(normalReq))
	resp = limits.Limit(normalReq)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	require.Equal(t, float64(3), testutil.ToFloat64(rateLimitAllowed.WithLabelValues("/special")))
	require.Equal(t, float64(1), testutil.ToFloat64(rateLimitRejections.WithLabelValues("/special")))
	require.Equal(t, float64(1), testutil.ToFloat64(rateLimitAllowed.WithLabelValues("/normal")))
	require.Equal(t, float64(1), testutil.ToFloat64(rateLimitRejections.WithLabelValues("/normal")))
}

func TestRateLimitsIPExemption(t *testing.T) {
	rateLimitAllowed.Reset()
	rateLimitRejections.Reset()

	limits := NewRateLimits(RateLimitConfig{
		Enabled:           true,
		Threshold:         1,
		CooloffMS:         1000,
		ExemptIPAddresses: []string{"198.51.100.1", "203.0.113.0/24"},
	})

	reqIP := httptest.NewRequest(http.MethodGet, "https://example.com/test", nil)
	reqIP.RemoteAddr = "198.51.100.1:9876"
	require.Nil(t, limits.Limit(reqIP))
	require.Nil(t, limits.Limit(reqIP))

	reqCIDR := httptest.NewRequest(http.MethodGet, "https://example.com/test", nil)
	reqCIDR.RemoteAddr = "203.0.113.42:1234"
	require.Nil(t, limits.Limit(reqCIDR))
	require.Nil(t, limits.Limit(reqCIDR))

	reqNonExempt := httptest.NewRequest(http.MethodGet, "https://example.com/test", nil)
	reqNonExempt.RemoteAddr = "192.0.2.10:5555"
	require.Nil(t, limits.Limit(reqNonExempt))
	resp := limits.Limit(reqNonExempt)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	require.Equal(t, float64(5), testutil.ToFloat64(rateLimitAllowed.WithLabelValues("/test")))
	require.Equal(t, float64(1), testutil.ToFloat64(rateLimitRejections.WithLabelValues("/test")))
}

func TestRequestIPXForwardedForSecurity(t *testing.T) {
	tests := []struct {
		name            string
		remoteAddr      string
		xForwardedFor   string
		expectedIP      string
		expectedTrusted bool
	}{
		{
			name:            "direct connection without X-Forwarded-For",
			remoteAddr:      "203.0.113.5:1234",
			expectedIP:      "203.0.113.5",
			expectedTrusted: false,
		},
		{
			name:            "direct connection ignores X-Forwarded-For",
			remoteAddr:      "203.0.113.5:1234",
			xForwardedFor:   "10.0.0.1",
			expectedIP:      "203.0.113.5",
			expectedTrusted: false,
		},
		{
			name:            "loopback connection trusts X-Forwarded-For",
			remoteAddr:      "127.0.0.1:1234",
			xForwardedFor:   "198.51.100.99",
			expectedIP:      "198.51.100.99",
			expectedTrusted: true,
		},
		{
			name:            "loopback with multiple IPs takes first valid non-loopback",
			remoteAddr:      "127.0.0.1:1234",
			xForwardedFor:   "198.51.100.1, 203.0.113.5, 192.0.2.1",
			expectedIP:      "198.51.100.1",
			expectedTrusted: true,
		},
		{
			name:            "loopback with loopback in header skips it",
			remoteAddr:      "127.0.0.1:1234",
			xForwardedFor:   "127.0.0.1, 198.51.100.50",
			expectedIP:      "198.51.100.50",
			expectedTrusted: true,
		},
		{
			name:            "ipv6 loopback connection trusts X-Forwarded-For",
			remoteAddr:      "[::1]:1234",
			xForwardedFor:   "2001:db8::1",
			expectedIP:      "2001:db8::1",
			expectedTrusted: true,
		},
		{
			name:            "loopback with empty X-Forwarded-For falls back to RemoteAddr",
			remoteAddr:      "127.0.0.1:1234",
			expectedIP:      "127.0.0.1",
			expectedTrusted: false,
		},
		{
			name:            "loopback with whitespace-only X-Forwarded-For falls back",
			remoteAddr:      "127.0.0.1:1234",
			xForwardedFor:   "  ,  , ",
			expectedIP:      "127.0.0.1",
			expectedTrusted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "https://example.com/test", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}

			ip, trusted := requestIP(req)
			require.NotNil(t, ip)
			require.Equal(t, tt.expectedIP, ip.String())
			require.Equal(t, tt.expectedTrusted, trusted)
		})
	}
}

func TestConcurrentAccessNoRace(t *testing.T) {
	limits := NewRateLimits(RateLimitConfig{
		Enabled:   true,
		Threshold: 100,
		CooloffMS: 50,
	})
	defer limits.Stop()

	done := make(chan bool)
	for i := 0; i < 50; i++ {
		go func(id int) {
			req := httptest.NewRequest(http.MethodGet, "https://example.com/test", nil)
			req.RemoteAddr = "203.0.113." + string(rune('0'+id%10)) + ":1234"
			for j := 0; j < 100; j++ {
				limits.Limit(req)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 50; i++ {
		<-done
	}

	limits.mutex.RLock()
	size := len(limits.limits)
	limits.mutex.RUnlock()
	require.Greater(t, size, 0)
}

func TestCleanupRemovesExpiredEntries(t *testing.T) {
	limits := NewRateLimits(RateLimitConfig{
		Enabled:   true,
		Threshold: 10,
		CooloffMS: 100,
	})
	defer limits.Stop()

	req1 := httptest.NewRequest(http.MethodGet, "https://example.com/test", nil)
	req1.RemoteAddr = "203.0.113.5:1234"
	limits.Limit(req1)

	req2 := httptest.NewRequest(http.MethodGet, "https://example.com/test", nil)
	req2.RemoteAddr = "203.0.113.6:1234"
	limits.Limit(req2)

	limits.mutex.RLock()
	initialSize := len(limits.limits)
	limits.mutex.RUnlock()
	require.Equal(t, 2, initialSize)

	limits.mutex.Lock()
	for _, entry := range limits.limits {
		entry.lastSeen = time.Now().Add(-2 * time.Minute)
	}
	limits.mutex.Unlock()

	cutoff := time.Now().Add(-time.Minute)

	limits.mutex.RLock()
	keysToCheck := make([]string, 0, len(limits.limits))
	for key := range limits.limits {
		keysToCheck = append(keysToCheck, key)
	}
	limits.mutex.RUnlock()

	for _, key := range keysToCheck {
		limits.mutex.Lock()
		entry, exists := limits.limits[key]
		if exists && entry.lastSeen.Before(cutoff) {
			delete(limits.limits, key)
		}
		limits.mutex.Unlock()
	}

	limits.mutex.RLock()
	finalSize := len(limits.limits)
	limits.mutex.RUnlock()
	require.Equal(t, 0, finalSize)
}

func TestStopPreventsGoroutineLeak(t *testing.T) {
	cfg := RateLimitConfig{
		Enabled:   true,
		Threshold: 10,
		CooloffMS: 100,
	}

	for i := 0; i < 10; i++ {
		limits := NewRateLimits(cfg)
		limits.Stop()
		limits.Stop()
	}
}
