package content

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"partyrooms/domain"
	"partyrooms/logger"
)

const maxCachedWords = 10_000

// HTTPDictionary asks a dictionary web service whether a word exists:
// 200 means yes, 404 means no. Anything else, including a rate-limit wait
// that would outlast ctx, counts as yes.
type HTTPDictionary struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger

	mu    sync.Mutex
	known map[string]bool
}

func NewHTTPDictionary(baseURL string, timeout time.Duration) *HTTPDictionary {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HTTPDictionary{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		log:     logger.Component("dictionary"),
		known:   make(map[string]bool),
	}
}

func (d *HTTPDictionary) Valid(ctx context.Context, word string) bool {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false
	}
	if v, ok := d.cached(word); ok {
		return v
	}

	valid, err := d.lookup(ctx, word)
	if err != nil {
		d.log.Warn().Err(err).Str("word", word).Msg("dictionary lookup failed, accepting word")
		return true
	}
	d.remember(word, valid)
	return valid
}

func (d *HTTPDictionary) lookup(ctx context.Context, word string) (bool, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+url.PathEscape(word), nil)
	if err != nil {
		return false, err
	}
	res, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, res.StatusCode)
	}
}

func (d *HTTPDictionary) cached(word string) (bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.known[word]
	return v, ok
}

func (d *HTTPDictionary) remember(word string, valid bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.known) >= maxCachedWords {
		clear(d.known)
	}
	d.known[word] = valid
}
