// Package hockeytech is a minimal client for the HockeyTech game-center API.
// The feed is quirky: responses may arrive JSONP-wrapped in parentheses, ids
// are stringly typed, and the server rate-limits aggressively.
package hockeytech

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/northpine/pwhl-sync/internal/model"
	"github.com/northpine/pwhl-sync/internal/resilience"
)

// Options configures the client. Zero values get sensible defaults.
type Options struct {
	BaseURL    string
	Key        string
	ClientCode string

	// RateInterval is the minimum spacing between requests.
	RateInterval time.Duration
	MaxRetries   int
	Timeout      time.Duration
}

const (
	defaultBaseURL      = "https://lscluster.hockeytech.com/feed/"
	defaultClientCode   = "pwhl"
	defaultRateInterval = 100 * time.Millisecond
)

// Client fetches and unwraps feed responses. Successful responses are cached
// in memory for the lifetime of the client, so one sync run never fetches the
// same game twice.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	retry   resilience.RetryConfig

	mu    sync.Mutex
	cache map[string][]byte
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.ClientCode == "" {
		opts.ClientCode = defaultClientCode
	}
	if opts.RateInterval <= 0 {
		opts.RateInterval = defaultRateInterval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = opts.MaxRetries
	retry.OnRetry = resilience.RetryLogger("hockeytech")

	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.RateInterval), 1),
		retry:   retry,
		cache:   make(map[string][]byte),
	}
}

// fetch performs one GET against index.php with the auth parameters merged
// in, unwraps JSONP if present, and caches the body by query string.
func (c *Client) fetch(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("key", c.opts.Key)
	params.Set("client_code", c.opts.ClientCode)
	cacheKey := params.Encode()

	c.mu.Lock()
	if body, ok := c.cache[cacheKey]; ok {
		c.mu.Unlock()
		return body, nil
	}
	c.mu.Unlock()

	reqURL := c.opts.BaseURL + "index.php?" + cacheKey

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "hockeytech: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "hockeytech: build request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "hockeytech: request")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("hockeytech: status %d from feed", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "hockeytech: read body")
		}
		return unwrapJSONP(raw), nil
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[cacheKey] = body
	c.mu.Unlock()

	zap.L().Debug("feed response cached",
		zap.String("params", cacheKey),
		zap.Int("bytes", len(body)))
	return body, nil
}

// unwrapJSONP strips one layer of surrounding parentheses.
func unwrapJSONP(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) >= 2 && trimmed[0] == '(' && trimmed[len(trimmed)-1] == ')' {
		return trimmed[1 : len(trimmed)-1]
	}
	return trimmed
}

// PlayByPlay fetches the verbose play-by-play event list for a game. The
// events come back in feed order, untyped.
func (c *Client) PlayByPlay(ctx context.Context, gameID int) ([]model.RawEvent, error) {
	params := url.Values{}
	params.Set("feed", "gc")
	params.Set("game_id", strconv.Itoa(gameID))
	params.Set("tab", "pxpverbose")
	params.Set("fmt", "json")

	body, err := c.fetch(ctx, params)
	if err != nil {
		return nil, eris.Wrapf(err, "hockeytech: fetch play-by-play for game %d", gameID)
	}

	var payload struct {
		GC struct {
			Pxpverbose []model.RawEvent `json:"Pxpverbose"`
		} `json:"GC"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, eris.Wrapf(err, "hockeytech: decode play-by-play for game %d", gameID)
	}
	if payload.GC.Pxpverbose == nil {
		return nil, eris.Errorf("hockeytech: no play-by-play in response for game %d", gameID)
	}
	return payload.GC.Pxpverbose, nil
}

// flexInt accepts the feed's mixed habit of numeric and quoted ids.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return eris.Wrapf(err, "parse id %q", s)
	}
	*f = flexInt(n)
	return nil
}

// GameTeams fetches the game summary and returns the home and visiting team
// ids. Used when the local games row does not carry them.
func (c *Client) GameTeams(ctx context.Context, gameID int) (home, visiting int, err error) {
	params := url.Values{}
	params.Set("feed", "statviewfeed")
	params.Set("view", "gameSummary")
	params.Set("game_id", strconv.Itoa(gameID))
	params.Set("site_id", "0")
	params.Set("lang", "en")

	body, err := c.fetch(ctx, params)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "hockeytech: fetch game summary for game %d", gameID)
	}

	var payload struct {
		HomeTeam struct {
			Info struct {
				ID flexInt `json:"id"`
			} `json:"info"`
		} `json:"homeTeam"`
		VisitingTeam struct {
			Info struct {
				ID flexInt `json:"id"`
			} `json:"info"`
		} `json:"visitingTeam"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, 0, eris.Wrapf(err, "hockeytech: decode game summary for game %d", gameID)
	}
	if payload.HomeTeam.Info.ID == 0 || payload.VisitingTeam.Info.ID == 0 {
		return 0, 0, eris.Errorf("hockeytech: game summary for game %d carries no team ids", gameID)
	}
	return int(payload.HomeTeam.Info.ID), int(payload.VisitingTeam.Info.ID), nil
}
