package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

const defaultTripThreshold = 5

// CircuitBreakerFetcher wraps a Downloader with one circuit breaker per host,
// so a failing tarball mirror does not hold up requests to the registry.
type CircuitBreakerFetcher struct {
	next      Downloader
	threshold int64
	breakers  map[string]*circuit.Breaker
	mu        sync.RWMutex
}

// NewCircuitBreakerFetcher wraps next. A breaker trips after threshold
// consecutive failures; values below one use the default of five.
func NewCircuitBreakerFetcher(next Downloader, threshold int) *CircuitBreakerFetcher {
	t := int64(threshold)
	if t < 1 {
		t = defaultTripThreshold
	}
	return &CircuitBreakerFetcher{
		next:      next,
		threshold: t,
		breakers:  make(map[string]*circuit.Breaker),
	}
}

func (cbf *CircuitBreakerFetcher) getBreaker(host string) *circuit.Breaker {
	cbf.mu.RLock()
	breaker, exists := cbf.breakers[host]
	cbf.mu.RUnlock()
	if exists {
		return breaker
	}

	cbf.mu.Lock()
	defer cbf.mu.Unlock()
	if breaker, exists := cbf.breakers[host]; exists {
		return breaker
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(cbf.threshold),
	})
	cbf.breakers[host] = breaker
	return breaker
}

// Fetch calls the wrapped Fetch unless the host's breaker is open.
// Not-found responses do not count as failures.
func (cbf *CircuitBreakerFetcher) Fetch(ctx context.Context, fetchURL string) (*Download, error) {
	host := extractHost(fetchURL)
	breaker := cbf.getBreaker(host)

	if !breaker.Ready() {
		breakerRejections.WithLabelValues(host).Inc()
		return nil, fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	var dl *Download
	var notFound error
	err := breaker.Call(func() error {
		var fetchErr error
		dl, fetchErr = cbf.next.Fetch(ctx, fetchURL)
		if fetchErr != nil && isNotFound(fetchErr) {
			notFound = fetchErr
			return nil
		}
		return fetchErr
	}, 0)
	if notFound != nil {
		return nil, notFound
	}
	if err != nil {
		if breaker.Tripped() {
			slog.WarnContext(ctx, "circuit breaker tripped", "host", host, "error", err)
		}
		return nil, err
	}
	return dl, nil
}

// Head calls the wrapped Head unless the host's breaker is open.
func (cbf *CircuitBreakerFetcher) Head(ctx context.Context, headURL string) (size int64, contentType string, err error) {
	host := extractHost(headURL)
	breaker := cbf.getBreaker(host)

	if !breaker.Ready() {
		breakerRejections.WithLabelValues(host).Inc()
		return 0, "", fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	var notFound error
	err = breaker.Call(func() error {
		var headErr error
		size, contentType, headErr = cbf.next.Head(ctx, headURL)
		if headErr != nil && isNotFound(headErr) {
			notFound = headErr
			return nil
		}
		return headErr
	}, 0)
	if notFound != nil {
		return 0, "", notFound
	}
	return size, contentType, err
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// extractHost groups URLs by host for breaker selection.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}

// BreakerStates reports "open" or "closed" for every host seen so far.
func (cbf *CircuitBreakerFetcher) BreakerStates() map[string]string {
	cbf.mu.RLock()
	defer cbf.mu.RUnlock()

	states := make(map[string]string, len(cbf.breakers))
	for host, breaker := range cbf.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}
