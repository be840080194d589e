package poller

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Failure causes reported through ResponseInfo.Error.
const (
	CauseTimeout    = "timeout"
	CauseConnection = "connection"
	CauseUnexpected = "unexpected"
)

const (
	defaultTimeout           = 30 * time.Second
	defaultBaseInterval      = 5 * time.Minute
	defaultRetryCount        = 3
	defaultRelaxMultiplier   = 3
	defaultNoChangeThreshold = 3
)

// Options parameterise the poller.
type Options struct {
	URL               string
	BaseInterval      time.Duration
	RelaxMultiplier   int
	NoChangeThreshold int
	Timeout           time.Duration
	RetryCount        int
	UserAgent         string
}

// ResponseInfo carries per-fetch metadata. A failed fetch never surfaces as a
// panic or error value; Error holds the classified cause instead.
type ResponseInfo struct {
	StatusCode int
	Duration   time.Duration
	FetchedAt  time.Time
	Error      string
}

// Status is a snapshot of the poller's adaptive state.
type Status struct {
	URL                  string
	BaseInterval         time.Duration
	RelaxedInterval      time.Duration
	CurrentInterval      time.Duration
	ConsecutiveNoChanges int
	LastResponseTime     time.Time
	ContentHash          string
	NextPollTime         time.Time
}

// Poller performs conditional GETs against the price endpoint, detects
// byte-level content changes by fingerprint, and adapts its own cadence:
// after NoChangeThreshold consecutive quiet fetches it relaxes to
// RelaxMultiplier times the base interval, and snaps back on the next change.
type Poller struct {
	opts   Options
	logger zerolog.Logger
	client *resty.Client

	contentHash         string
	etag                string
	lastModified        string
	lastResponseTime    time.Time
	consecutiveNoChange int
	currentInterval     time.Duration
}

// New constructs a poller with a bounded retry budget: GETs only, capped
// exponential backoff, retried on transient server statuses.
func New(opts Options, logger zerolog.Logger) *Poller {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.BaseInterval <= 0 {
		opts.BaseInterval = defaultBaseInterval
	}
	if opts.RelaxMultiplier <= 0 {
		opts.RelaxMultiplier = defaultRelaxMultiplier
	}
	if opts.NoChangeThreshold <= 0 {
		opts.NoChangeThreshold = defaultNoChangeThreshold
	}
	if opts.RetryCount == 0 {
		opts.RetryCount = defaultRetryCount
	} else if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "oilwatch/1.0"
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return false
			}
			return retryableStatus(r.StatusCode())
		}).
		SetRetryAfter(func(c *resty.Client, r *resty.Response) (time.Duration, error) {
			if r != nil && r.StatusCode() == http.StatusTooManyRequests {
				if after := r.Header().Get("Retry-After"); after != "" {
					if seconds, err := strconv.Atoi(after); err == nil {
						return time.Duration(seconds) * time.Second, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		}).
		SetHeaders(map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "application/json, text/plain, */*",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		})

	return &Poller{
		opts:            opts,
		logger:          logger.With().Str("component", "poller").Logger(),
		client:          client,
		currentInterval: opts.BaseInterval,
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Fetch performs one poll. changed reports whether the payload differs from
// the previously fingerprinted body; payload is nil on 304 and on failure.
func (p *Poller) Fetch(ctx context.Context, useConditional bool) (bool, []byte, ResponseInfo) {
	req := p.client.R().SetContext(ctx)
	if useConditional {
		if p.etag != "" {
			req.SetHeader("If-None-Match", p.etag)
		}
		if p.lastModified != "" {
			req.SetHeader("If-Modified-Since", p.lastModified)
		}
	}

	start := time.Now()
	resp, err := req.Get(p.opts.URL)
	info := ResponseInfo{
		Duration:  time.Since(start),
		FetchedAt: time.Now().UTC(),
	}

	if err != nil {
		info.Error = classifyError(err)
		p.logger.Error().Err(err).Str("cause", info.Error).Msg("fetch failed")
		return false, nil, info
	}

	info.StatusCode = resp.StatusCode()

	switch resp.StatusCode() {
	case http.StatusNotModified:
		p.logger.Debug().Msg("content unchanged (HTTP 304)")
		p.lastResponseTime = info.FetchedAt
		p.recordSample(false)
		return false, nil, info

	case http.StatusOK:
		body := resp.Body()
		hash := Fingerprint(body)
		if hash == p.contentHash {
			p.logger.Debug().Str("hash", shortHash(hash)).Msg("content unchanged (same fingerprint)")
			p.lastResponseTime = info.FetchedAt
			p.recordSample(false)
			return false, body, info
		}

		p.contentHash = hash
		if etag := resp.Header().Get("ETag"); etag != "" {
			p.etag = etag
		}
		if modified := resp.Header().Get("Last-Modified"); modified != "" {
			p.lastModified = modified
		}
		p.lastResponseTime = info.FetchedAt
		p.recordSample(true)
		p.logger.Info().Str("hash", shortHash(hash)).Msg("content change detected")
		return true, body, info

	default:
		info.Error = fmt.Sprintf("http_status:%d", resp.StatusCode())
		p.logger.Warn().Int("status", resp.StatusCode()).Msg("unexpected response status")
		return false, nil, info
	}
}

// recordSample applies the two-state interval policy.
func (p *Poller) recordSample(changed bool) {
	if changed {
		p.consecutiveNoChange = 0
		p.currentInterval = p.opts.BaseInterval
		return
	}
	p.consecutiveNoChange++
	if p.consecutiveNoChange >= p.opts.NoChangeThreshold {
		p.currentInterval = p.relaxedInterval()
	}
}

func (p *Poller) relaxedInterval() time.Duration {
	return p.opts.BaseInterval * time.Duration(p.opts.RelaxMultiplier)
}

// NextPollTime reports when the caller should poll again, anchored to the most
// recent successful response so quiet stretches keep their pacing. The poller
// does not schedule timers itself.
func (p *Poller) NextPollTime() time.Time {
	if p.lastResponseTime.IsZero() {
		return time.Now().UTC().Add(p.opts.BaseInterval)
	}
	return p.lastResponseTime.Add(p.currentInterval)
}

// CurrentInterval exposes the active polling interval.
func (p *Poller) CurrentInterval() time.Duration {
	return p.currentInterval
}

// Status snapshots the adaptive polling state.
func (p *Poller) Status() Status {
	return Status{
		URL:                  p.opts.URL,
		BaseInterval:         p.opts.BaseInterval,
		RelaxedInterval:      p.relaxedInterval(),
		CurrentInterval:      p.currentInterval,
		ConsecutiveNoChanges: p.consecutiveNoChange,
		LastResponseTime:     p.lastResponseTime,
		ContentHash:          shortHash(p.contentHash),
		NextPollTime:         p.NextPollTime(),
	}
}

// Reset clears validators, fingerprint, and counters back to construction
// defaults. Not used on the happy path.
func (p *Poller) Reset() {
	p.contentHash = ""
	p.etag = ""
	p.lastModified = ""
	p.lastResponseTime = time.Time{}
	p.consecutiveNoChange = 0
	p.currentInterval = p.opts.BaseInterval
	p.logger.Info().Msg("polling state reset")
}

// Fingerprint returns the truncated SHA-256 of a payload body.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])[:16]
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return CauseTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CauseTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CauseConnection
	}
	return CauseUnexpected
}
