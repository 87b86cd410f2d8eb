// Package client implements the remote invocation client: tool discovery
// with a TTL'd cache, envelope-decoding invocation with per-call timeouts,
// and function adapters for decision-making callers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ticketbridge/ticketbridge/internal/domain"
)

// ErrTransport marks a network, timeout or decoding failure while talking
// to the server. Discover returns it wrapped; Invoke converts it into a
// TransportError envelope instead.
var ErrTransport = errors.New("transport failure")

const (
	defaultCacheTTL      = 5 * time.Minute
	defaultInvokeTimeout = 30 * time.Second
	defaultMaxInFlight   = 8
)

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8081".
	BaseURL string
	// HTTPClient is optional; http.DefaultClient is used when nil.
	HTTPClient *http.Client
	// CacheTTL bounds how long a discovery result is served from cache.
	CacheTTL time.Duration
	// InvokeTimeout is the per-call ceiling applied on top of the caller's
	// context.
	InvokeTimeout time.Duration
	// MaxInFlight caps concurrent invocations. Invocations beyond the cap
	// wait; they are never rejected.
	MaxInFlight int64
	Logger      *slog.Logger
}

// toolCache is one discovery generation. A refresh replaces the whole value
// atomically; it is never mutated in place.
type toolCache struct {
	descriptors []domain.ToolDescriptor
	fetchedAt   time.Time
	generation  uint64
}

// Client talks to a remote tool server.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	cacheTTL      time.Duration
	invokeTimeout time.Duration
	inFlight      *semaphore.Weighted
	logger        *slog.Logger

	mu    sync.RWMutex
	cache *toolCache
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: base URL must not be empty")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	invokeTimeout := cfg.InvokeTimeout
	if invokeTimeout <= 0 {
		invokeTimeout = defaultInvokeTimeout
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		httpClient:    httpClient,
		cacheTTL:      cacheTTL,
		invokeTimeout: invokeTimeout,
		inFlight:      semaphore.NewWeighted(maxInFlight),
		logger:        logger.With("component", "invocation_client"),
	}, nil
}

// Discover returns the server's tool descriptors. A warm, unexpired cache is
// served without a network round-trip unless forceRefresh is set. On fetch
// failure any existing cache is left intact (stale-but-available) and the
// transport error is returned wrapped in ErrTransport.
func (c *Client) Discover(ctx context.Context, forceRefresh bool) ([]domain.ToolDescriptor, error) {
	if !forceRefresh {
		if cached, ok := c.cached(); ok {
			c.logger.Debug("Serving tool list from cache.", slog.Int("count", len(cached)))
			return cached, nil
		}
	}

	descriptors, err := c.fetchTools(ctx)
	if err != nil {
		c.logger.Warn("Tool discovery failed.", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	c.mu.Lock()
	generation := uint64(1)
	if c.cache != nil {
		generation = c.cache.generation + 1
	}
	c.cache = &toolCache{
		descriptors: descriptors,
		fetchedAt:   time.Now(),
		generation:  generation,
	}
	c.mu.Unlock()

	c.logger.Info("Discovered tools.", slog.Int("count", len(descriptors)), slog.Uint64("generation", generation))
	return cloneDescriptors(descriptors), nil
}

// InvalidateCache drops the cached tool list; the next Discover fetches.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	c.cache = nil
	c.mu.Unlock()
}

// Invoke calls a named tool on the server and always returns an envelope.
// Timeout and transport failures are synthesized into TransportError
// envelopes locally, preserving a single result shape for all outcomes.
func (c *Client) Invoke(ctx context.Context, toolName string, arguments map[string]any) domain.InvocationResult {
	requestID := uuid.NewString()
	log := c.logger.With(slog.String("tool_name", toolName), slog.String("request_id", requestID))

	if err := c.inFlight.Acquire(ctx, 1); err != nil {
		log.Warn("Invocation cancelled while waiting for an in-flight slot.", slog.Any("error", err))
		return domain.FailTool(domain.ErrKindTransport,
			fmt.Sprintf("invocation cancelled before dispatch: %v", err), toolName)
	}
	defer c.inFlight.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.invokeTimeout)
	defer cancel()

	body, err := json.Marshal(domain.InvocationRequest{Name: toolName, Arguments: arguments})
	if err != nil {
		return domain.FailTool(domain.ErrKindTransport,
			fmt.Sprintf("failed to encode invocation request: %v", err), toolName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp/call_tool", bytes.NewReader(body))
	if err != nil {
		return domain.FailTool(domain.ErrKindTransport,
			fmt.Sprintf("failed to build invocation request: %v", err), toolName)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	log.Debug("Sending invocation request.")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("Invocation timed out.")
			return domain.FailTool(domain.ErrKindTransport,
				fmt.Sprintf("invocation of %q timed out", toolName), toolName)
		}
		log.Warn("Invocation request failed.", slog.Any("error", err))
		return domain.FailTool(domain.ErrKindTransport,
			fmt.Sprintf("invocation request failed: %v", err), toolName)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Warn("Server returned non-OK status for invocation.",
			slog.Int("status_code", resp.StatusCode))
		return domain.FailTool(domain.ErrKindTransport,
			fmt.Sprintf("server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data)), toolName)
	}

	var result domain.InvocationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Warn("Failed to decode invocation envelope.", slog.Any("error", err))
		return domain.FailTool(domain.ErrKindTransport,
			fmt.Sprintf("failed to decode invocation envelope: %v", err), toolName)
	}

	log.Debug("Received invocation envelope.", slog.Bool("success", result.Success))
	return result
}

// fetchTools performs the discovery round-trip.
func (c *Client) fetchTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/mcp/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery returned HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Tools []domain.ToolDescriptor `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode discovery response: %w", err)
	}
	return payload.Tools, nil
}

// cached returns a copy of the cached descriptors when the cache is warm.
func (c *Client) cached() ([]domain.ToolDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cache == nil || time.Since(c.cache.fetchedAt) > c.cacheTTL {
		return nil, false
	}
	return cloneDescriptors(c.cache.descriptors), true
}

// generationSnapshot returns the current cache contents and generation for
// adapter construction, without TTL checks.
func (c *Client) generationSnapshot() ([]domain.ToolDescriptor, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cache == nil {
		return nil, 0, false
	}
	return cloneDescriptors(c.cache.descriptors), c.cache.generation, true
}

func cloneDescriptors(in []domain.ToolDescriptor) []domain.ToolDescriptor {
	out := make([]domain.ToolDescriptor, len(in))
	copy(out, in)
	return out
}
