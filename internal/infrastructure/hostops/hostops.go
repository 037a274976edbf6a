// Package hostops executes capability-gated operations on the host.
// Nothing here checks policy: callers dispatch through the policy
// engine first and hand this package pre-confined paths and clamped
// limits.
package hostops

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/portcullis-dev/portcullis/internal/version"
)

const (
	// DefaultMaxOutputBytes caps each exec output stream.
	DefaultMaxOutputBytes = 10 * 1024 * 1024
	// DefaultMaxBodyBytes caps HTTP response bodies.
	DefaultMaxBodyBytes = 10 * 1024 * 1024
	// DefaultMaxReadBytes caps file reads when the caller sets no limit.
	DefaultMaxReadBytes = 8 * 1024 * 1024
	// DefaultWaitDelay bounds how long a killed process may hold its
	// output pipes open before Run gives up waiting.
	DefaultWaitDelay = time.Second

	maxRedirects = 10
)

// Options adjusts operation limits. Zero values take defaults.
type Options struct {
	MaxOutputBytes int
	MaxBodyBytes   int64
	MaxReadBytes   int64
	WaitDelay      time.Duration
	UserAgent      string
	// Client overrides the outbound HTTP client. The default client
	// refuses redirects that leave the originally approved host.
	Client *http.Client
	Logger *slog.Logger
}

// Operations implements every host-side operation the dispatcher can
// execute after policy allows it.
type Operations struct {
	maxOutput int
	maxBody   int64
	maxRead   int64
	waitDelay time.Duration
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

// New builds an Operations with the given options.
func New(opts Options) *Operations {
	o := &Operations{
		maxOutput: opts.MaxOutputBytes,
		maxBody:   opts.MaxBodyBytes,
		maxRead:   opts.MaxReadBytes,
		waitDelay: opts.WaitDelay,
		userAgent: opts.UserAgent,
		client:    opts.Client,
		logger:    opts.Logger,
	}
	if o.maxOutput <= 0 {
		o.maxOutput = DefaultMaxOutputBytes
	}
	if o.maxBody <= 0 {
		o.maxBody = DefaultMaxBodyBytes
	}
	if o.maxRead <= 0 {
		o.maxRead = DefaultMaxReadBytes
	}
	if o.waitDelay <= 0 {
		o.waitDelay = DefaultWaitDelay
	}
	if o.userAgent == "" {
		info := version.Get()
		o.userAgent = fmt.Sprintf("Portcullis/%s (%s)", info.Version, info.Platform)
	}
	if o.client == nil {
		o.client = newClient()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// newClient builds the default outbound client. Redirects may not
// leave the host the policy decision approved.
func newClient() *http.Client {
	transport := &http.Transport{
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if req.URL.Host != via[0].URL.Host {
				return fmt.Errorf("redirect to %s leaves approved host %s", req.URL.Host, via[0].URL.Host)
			}
			return nil
		},
	}
}
