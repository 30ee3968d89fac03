package loader

import (
	"net/http"
	"time"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithSettleDelay sets how long a decoded image waits before its dimensions are published.
// Defaults to 300ms. A negative delay publishes immediately.
//
// Parameters:
//   - d: the settle delay
//
// Returns:
//   - LoaderBuilderOption: a function that applies the settle delay option to a loader
func WithSettleDelay(d time.Duration) LoaderBuilderOption {
	return func(l *loader) {
		l.settleDelay = d
	}
}

// WithHTTPClient sets the client used for http and https URLs.
//
// Parameters:
//   - c: the HTTP client
//
// Returns:
//   - LoaderBuilderOption: a function that applies the client option to a loader
func WithHTTPClient(c *http.Client) LoaderBuilderOption {
	return func(l *loader) {
		l.client = c
	}
}

// WithTimeout sets the timeout of the default HTTP client. Ignored when WithHTTPClient is used.
//
// Parameters:
//   - d: the request timeout
//
// Returns:
//   - LoaderBuilderOption: a function that applies the timeout option to a loader
func WithTimeout(d time.Duration) LoaderBuilderOption {
	return func(l *loader) {
		l.timeout = d
	}
}

// WithWorkers sets the number of images decoded concurrently.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - LoaderBuilderOption: a function that applies the worker count option to a loader
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.workers = n
	}
}
