package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nishimvki/coverdiscover/internal/config"
	"github.com/nishimvki/coverdiscover/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.spotify.com"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	// OffsetCap is the deepest offset+limit the search endpoint serves
	OffsetCap = 1000
	// MaxLimit is the largest page the search endpoint returns
	MaxLimit = 50

	maxRetries  = 3
	baseBackoff = 2 * time.Second
	maxBackoff  = 32 * time.Second
)

var (
	ErrOffsetCap    = errors.New("offset+limit exceeds the search offset cap")
	ErrInvalidLimit = errors.New("limit must be between 1 and 50")
	ErrThrottled    = errors.New("search endpoint kept throttling")
)

type APIClient struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	market      string
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

type searchResponse struct {
	Tracks struct {
		Total int `json:"total"`
		Items []struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			Popularity int    `json:"popularity"`
			PreviewURL string `json:"preview_url"`
			Artists    []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Name        string         `json:"name"`
				ReleaseDate string         `json:"release_date"`
				Images      []domain.Image `json:"images"`
			} `json:"album"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"items"`
	} `json:"tracks"`
}

// NewAPIClient authenticates with the client-credentials flow. The token is
// fetched lazily on the first search and refreshed by the oauth2 transport.
func NewAPIClient(ctx context.Context, p config.Provider) (*APIClient, error) {
	if p.ClientID == "" || p.ClientSecret == "" {
		return nil, config.ErrMissingCredentials
	}

	tokenURL := p.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	creds := &clientcredentials.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		TokenURL:     tokenURL,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: 10 * time.Second})
	httpClient := creds.Client(ctx)
	httpClient.Timeout = 10 * time.Second

	return &APIClient{
		httpClient: httpClient,
		// Web API budget is a rolling 30s window; ~5 req/s stays well inside it
		limiter:     rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		baseURL:     baseURL,
		market:      p.Market,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}, nil
}

func (ac *APIClient) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchPage, error) {
	if req.Limit < 1 || req.Limit > MaxLimit {
		return domain.SearchPage{}, fmt.Errorf("%w: %d", ErrInvalidLimit, req.Limit)
	}
	if req.Offset < 0 || req.Offset+req.Limit > OffsetCap {
		return domain.SearchPage{}, fmt.Errorf("%w: offset=%d limit=%d", ErrOffsetCap, req.Offset, req.Limit)
	}
	if req.Type == "" {
		req.Type = domain.TypeTrack
	}

	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("type", req.Type)
	params.Set("limit", strconv.Itoa(req.Limit))
	params.Set("offset", strconv.Itoa(req.Offset))
	if ac.market != "" {
		params.Set("market", ac.market)
	}
	endpoint := ac.baseURL + "/v1/search?" + params.Encode()

	for attempt := 0; ; attempt++ {
		if err := ac.limiter.Wait(ctx); err != nil {
			return domain.SearchPage{}, err
		}

		page, retryAfter, err := ac.do(ctx, endpoint)
		if !errors.Is(err, ErrThrottled) {
			return page, err
		}
		if attempt >= maxRetries {
			return domain.SearchPage{}, fmt.Errorf("%w after %d retries", ErrThrottled, maxRetries)
		}

		wait := ac.backoff(attempt, retryAfter)
		select {
		case <-ctx.Done():
			return domain.SearchPage{}, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// do performs one request. A 429 is reported as ErrThrottled together with
// the server's Retry-After hint (negative when absent).
func (ac *APIClient) do(ctx context.Context, endpoint string) (domain.SearchPage, time.Duration, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.SearchPage{}, 0, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := ac.httpClient.Do(httpReq)
	if err != nil {
		return domain.SearchPage{}, 0, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(-1)
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
		return domain.SearchPage{}, retryAfter, ErrThrottled
	}
	if resp.StatusCode != http.StatusOK {
		return domain.SearchPage{}, 0, fmt.Errorf("search status: %d", resp.StatusCode)
	}

	var sResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sResp); err != nil {
		return domain.SearchPage{}, 0, fmt.Errorf("decode search response: %w", err)
	}

	page := domain.SearchPage{Total: sResp.Tracks.Total}
	for _, it := range sResp.Tracks.Items {
		artists := make([]string, 0, len(it.Artists))
		for _, a := range it.Artists {
			artists = append(artists, a.Name)
		}
		page.Items = append(page.Items, domain.Track{
			ID:         it.ID,
			Name:       it.Name,
			Artists:    artists,
			Popularity: it.Popularity,
			PreviewURL: it.PreviewURL,
			Album: domain.Album{
				Name:        it.Album.Name,
				ReleaseDate: it.Album.ReleaseDate,
				Images:      it.Album.Images,
			},
			ExternalURL: it.ExternalURLs.Spotify,
		})
	}
	return page, 0, nil
}

// backoff honours Retry-After when given, else doubles from baseBackoff
func (ac *APIClient) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter >= 0 {
		return min(retryAfter, ac.maxBackoff)
	}
	return min(ac.baseBackoff<<attempt, ac.maxBackoff)
}
