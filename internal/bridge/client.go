package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"revitmcp/internal/domain"
)

const (
	// probeTimeout bounds each port probe; the listener answers instantly
	// when it is up at all.
	probeTimeout = 2 * time.Second
	// callTimeout bounds a tool call; category sweeps over large models
	// can be slow.
	callTimeout = 60 * time.Second

	routePrefix   = "/revit-mcp-v1"
	probePath     = "/project_info"
	bodyTruncateN = 200
)

// ErrListenerNotFound means no candidate port answered the probe.
var ErrListenerNotFound = errors.New("no Revit listener found on any candidate port")

// Client talks to the Revit-side listener. The adopted base URL is cached
// and shared across goroutines.
type Client struct {
	host   string
	ports  []int
	http   *http.Client
	logger *log.Logger

	mu      sync.RWMutex
	baseURL string
}

type Option func(*Client)

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(host string, ports []int, opts ...Option) *Client {
	c := &Client{
		host:   host,
		ports:  append([]int(nil), ports...),
		http:   &http.Client{Timeout: callTimeout},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the currently adopted listener base URL, or "" when no
// port has been detected yet.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL pins the listener address, bypassing detection. Used when the
// port is known from configuration.
func (c *Client) SetBaseURL(u string) {
	c.mu.Lock()
	c.baseURL = strings.TrimRight(u, "/")
	c.mu.Unlock()
}

// DetectPort probes each candidate port in order and adopts the first one
// whose probe endpoint answers at all. Any HTTP response proves a listener
// is there, including 404, 405 and 5xx; a listener with no document open
// answers 503 and still owns the port.
func (c *Client) DetectPort(ctx context.Context) (string, error) {
	for _, port := range c.ports {
		base := fmt.Sprintf("http://%s:%d%s", c.host, port, routePrefix)
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, base+probePath, nil)
		if err != nil {
			cancel()
			continue
		}
		resp, err := c.http.Do(req)
		cancel()
		if err != nil {
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		c.SetBaseURL(base)
		c.logger.Printf("bridge: adopted listener port %d (probe status %d)", port, resp.StatusCode)
		return base, nil
	}
	return "", ErrListenerNotFound
}

// ensureBaseURL returns the cached base URL, running detection when there is
// none yet.
func (c *Client) ensureBaseURL(ctx context.Context) (string, error) {
	if u := c.BaseURL(); u != "" {
		return u, nil
	}
	return c.DetectPort(ctx)
}

// Call performs one listener request and normalizes every failure mode into
// an error envelope, so tool wrappers never have to branch on transport
// errors. On a connection level failure it re-runs detection and retries
// exactly once; timeouts are not retried.
func (c *Client) Call(ctx context.Context, method, path string, payload interface{}) domain.Envelope {
	base, err := c.ensureBaseURL(ctx)
	if err != nil {
		return domain.ErrorEnvelope(err.Error())
	}

	env, err := c.do(ctx, method, base+path, payload)
	if err == nil {
		return env
	}
	if !isConnectionError(err) {
		return domain.ErrorEnvelope(fmt.Sprintf("listener request failed: %v", err))
	}

	// The listener may have restarted on a different port.
	firstURL := base + path
	c.SetBaseURL("")
	base, derr := c.DetectPort(ctx)
	if derr != nil {
		return domain.ErrorEnvelope(fmt.Sprintf("listener connection lost at %s and re-detection failed: %v", firstURL, derr))
	}
	env, err = c.do(ctx, method, base+path, payload)
	if err != nil {
		return domain.ErrorEnvelope(fmt.Sprintf("listener request failed at %s after retry (first attempt %s): %v", base+path, firstURL, err))
	}
	return env
}

func (c *Client) do(ctx context.Context, method, url string, payload interface{}) (domain.Envelope, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env domain.Envelope
	if jerr := json.Unmarshal(raw, &env); jerr != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return domain.ErrorEnvelope(fmt.Sprintf("non-JSON response from listener: %s", truncate(raw))), nil
		}
		return domain.ErrorEnvelope(fmt.Sprintf("listener returned HTTP %d: %s", resp.StatusCode, truncate(raw))), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if env.Status() == "" {
			env["status"] = domain.StatusError
		}
		if env.Message() == "" {
			env["message"] = fmt.Sprintf("listener returned HTTP %d", resp.StatusCode)
		}
	}
	return env, nil
}

// isConnectionError distinguishes refused/reset connections, which warrant a
// port re-detect, from timeouts, which do not.
func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func truncate(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > bodyTruncateN {
		return s[:bodyTruncateN] + "..."
	}
	return s
}
