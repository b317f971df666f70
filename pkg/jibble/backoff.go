package jibble

import (
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func backoff(attempt int, base, maxBackoff time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}
	// base * 2^(attempt-1)
	d := time.Duration(math.Pow(2, float64(attempt-1)) * float64(base))
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

func jitter(r *rand.Rand, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 || r == nil {
		return 0
	}
	// [0, maxJitter]
	return time.Duration(r.Int63n(int64(maxJitter) + 1)) //nolint:gosec
}

// retryAfter reads a delay-seconds Retry-After header. HTTP dates are ignored.
func retryAfter(h http.Header, maxBackoff time.Duration) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d, true
}
