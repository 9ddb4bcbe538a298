// Package httpgen is a providers.Generator backed by a remote generation
// and optimization service over HTTP.
package httpgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/logging"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
)

// Config controls how the client reaches the generation service.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	MaxPages   int
	Logger     *slog.Logger
}

// Client posts generation requests and maps the paged responses to domain models.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpDoer
	now        func() time.Time
	maxPages   int
	logger     *slog.Logger
}

var _ providers.Generator = (*Client)(nil)

// NewClient constructs a client with the provided configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:    normalizeBaseURL(cfg.BaseURL),
		apiKey:     cfg.APIKey,
		httpClient: resolveHTTPClient(cfg.HTTPClient),
		now:        time.Now,
		maxPages:   resolveMaxPages(cfg.MaxPages),
		logger:     cfg.Logger,
	}
}

// Generate sends req and collects every page of the response. 429 and 5xx
// answers come back as *providers.RetryableError carrying Retry-After.
func (c *Client) Generate(ctx context.Context, req providers.Request) (providers.Response, error) {
	body, err := json.Marshal(c.encode(req))
	if err != nil {
		return providers.Response{}, fmt.Errorf("%s: encode request: %w", providerName, err)
	}

	var out providers.Response
	page := 1
	for {
		payload, err := c.fetchPage(ctx, body, page)
		if err != nil {
			return providers.Response{}, err
		}

		for _, g := range payload.Data.Games {
			out.Games = append(out.Games, mapGame(g, req.SportID))
		}
		for _, raw := range payload.Data.Suggestions {
			s, err := mapSuggestion(raw, req.SportID, c.now())
			if err != nil {
				logging.Warn(c.logger, "generation suggestion skipped",
					logging.FieldProvider, providerName,
					logging.FieldSuggestionID, raw.ID,
					"err", err,
				)
				continue
			}
			out.Suggestions = append(out.Suggestions, s)
		}

		if payload.Meta.TotalPages <= 0 || page >= payload.Meta.TotalPages || page >= c.maxPages {
			break
		}
		page++
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, body []byte, page int) (generateResponse, error) {
	httpReq, err := c.buildRequest(ctx, body, page)
	if err != nil {
		return generateResponse{}, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return generateResponse{}, ctx.Err()
		}
		return generateResponse{}, providers.Retryable(providerName, "generate", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if retryable(resp.StatusCode) {
			return generateResponse{}, &providers.RetryableError{
				Provider:   providerName,
				Op:         "generate",
				StatusCode: resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
				Err:        statusErr,
			}
		}
		return generateResponse{}, fmt.Errorf("%s: %w", providerName, statusErr)
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return generateResponse{}, fmt.Errorf("%s: decode response: %w", providerName, err)
	}
	return payload, nil
}

func (c *Client) buildRequest(ctx context.Context, body []byte, page int) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) encode(req providers.Request) generateRequest {
	out := generateRequest{
		SportID:     req.SportID,
		Season:      req.Season,
		Constraints: req.Constraints,
	}
	for _, g := range req.Games {
		out.Games = append(out.Games, toPayload(g))
	}
	return out
}
