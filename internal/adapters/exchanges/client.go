package exchanges

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"whalewatch/pkg/errors"
)

const defaultHTTPTimeout = 10 * time.Second

// NewHTTPClient returns the http.Client used by adapters when none is injected.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// NewLimiter builds a per-exchange rate limiter from a requests-per-minute budget.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	rps := float64(requestsPerMinute) / 60.0
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// GetJSON performs a rate-limited GET against an exchange endpoint and decodes
// the JSON response into dest. Non-2xx responses and malformed payloads map to
// the shared error taxonomy so callers can treat them uniformly.
func GetJSON(ctx context.Context, hc *http.Client, limiter *rate.Limiter, url string, dest interface{}) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "whalewatch/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrExchangeUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.Wrapf(errors.ErrRateLimited, "GET %s", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(errors.ErrExchangeUnavailable, "GET %s: http %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrExchangeUnavailable, err.Error())
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return errors.Wrapf(errors.ErrBadPayload, "GET %s: %v", url, err)
	}

	return nil
}

// ToFloat coerces the mixed string/number values exchanges put inside
// positional tuples. Returns 0 for anything unparseable; callers drop
// zero-priced levels.
func ToFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// ParseFloat parses a decimal string, returning 0 on failure.
func ParseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
