// Package firebase implements store.RemoteGateway against the Firebase
// Realtime Database REST surface. Nodes are read and written as JSON at
// <host>/<path>.json; live updates arrive over a server-sent event stream.
package firebase

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"todosync/internal/ratelimit"
	"todosync/internal/utils"
	"todosync/store"
)

// Config holds Firebase Realtime Database connection settings
type Config struct {
	// Host is the database origin, e.g. "my-project.firebaseio.com".
	Host string
	// AuthToken is appended to every request when set.
	AuthToken string
	AllowHTTP bool
	// InsecureSkipVerify disables TLS verification; test servers only.
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// ConfigFromEnv creates a Config from environment variables
func ConfigFromEnv() Config {
	return Config{
		Host:      os.Getenv("TODOSYNC_FIREBASE_HOST"),
		AuthToken: os.Getenv("TODOSYNC_FIREBASE_TOKEN"),
	}
}

// Gateway implements store.RemoteGateway over the RTDB REST API.
type Gateway struct {
	config    Config
	client    *http.Client
	transport *http.Transport
	baseURL   string
}

// New creates a gateway for the configured database.
func New(cfg Config) (*Gateway, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("firebase host is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	baseURL := cfg.Host
	if !strings.Contains(baseURL, "://") {
		scheme := "https"
		if cfg.AllowHTTP {
			scheme = "http"
		}
		baseURL = scheme + "://" + baseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	// 429 responses are retried per Retry-After before surfacing as
	// transport errors.
	return &Gateway{
		config: cfg,
		client: &http.Client{
			Transport: &ratelimit.Transport{Base: transport, Jitter: true},
			Timeout:   cfg.Timeout,
		},
		transport: transport,
		baseURL:   baseURL,
	}, nil
}

// nodeURL maps a slash-delimited tree path to its REST endpoint.
func (g *Gateway) nodeURL(path string) string {
	u := g.baseURL + "/" + strings.Trim(path, "/") + ".json"
	if g.config.AuthToken != "" {
		u += "?auth=" + url.QueryEscape(g.config.AuthToken)
	}
	return u
}

// Write sets the value at path, creating the node if absent.
func (g *Gateway) Write(ctx context.Context, path string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	resp, err := g.doRequest(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	return checkStatus(resp)
}

// Push stores value under a server-assigned child key of path and returns
// that key.
func (g *Gateway) Push(ctx context.Context, path string, value any) (string, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	resp, err := g.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding push response: %w", err)
	}
	if result.Name == "" {
		return "", fmt.Errorf("push to %s returned no key", path)
	}
	return result.Name, nil
}

// ReadOnce fetches the current value at path. A missing node comes back as
// JSON null and yields a nil map with no error.
func (g *Gateway) ReadOnce(ctx context.Context, path string) (map[string]any, error) {
	resp, err := g.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	return decodeNode(resp.Body)
}

// RemovePath deletes the node at path. Deleting an absent node succeeds.
func (g *Gateway) RemovePath(ctx context.Context, path string) error {
	resp, err := g.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	return checkStatus(resp)
}

// Subscribe opens a server-sent event stream on path. Each put event from
// the server is delivered as a full snapshot of the node; transport errors
// go to the Errors channel and the stream reconnects.
func (g *Gateway) Subscribe(ctx context.Context, path string) (store.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		gateway: g,
		path:    path,
		updates: make(chan store.Snapshot, 16),
		errors:  make(chan error, 4),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go sub.run(subCtx)
	return sub, nil
}

// Close closes idle connections. Open subscriptions are closed by their
// owners.
func (g *Gateway) Close() error {
	g.transport.CloseIdleConnections()
	return nil
}

// doRequest performs one REST call against the node at path.
func (g *Gateway) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.nodeURL(path), bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, utils.ErrRemoteOffline(err.Error())
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: remote returned %d: %s", utils.ErrNoPermission, resp.StatusCode, snippet)
	}
	return utils.ErrRemoteOffline(fmt.Sprintf("remote returned %d: %s", resp.StatusCode, snippet))
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

// decodeNode parses a node body. Scalars and lists at the root are not part
// of the record tree and come back as an error.
func decodeNode(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding node: %w", err)
	}
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("unexpected node shape %T", raw)
	}
}

// subscription is one SSE stream with automatic reconnect.
type subscription struct {
	gateway *Gateway
	path    string
	updates chan store.Snapshot
	errors  chan error
	cancel  context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

func (s *subscription) Updates() <-chan store.Snapshot { return s.updates }
func (s *subscription) Errors() <-chan error           { return s.errors }

// Close tears the stream down. Safe to call more than once.
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		close(s.updates)
		close(s.errors)
	})
	return nil
}

const reconnectDelay = 2 * time.Second

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)
	for {
		if err := s.stream(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.reportError(err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// stream holds one SSE connection open and forwards put events. The
// streaming client must not carry the gateway's request timeout, and the
// reconnect loop does its own retrying so it skips the 429 wrapper.
func (s *subscription) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.gateway.nodeURL(s.path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	client := &http.Client{Transport: s.gateway.transport}
	resp, err := client.Do(req)
	if err != nil {
		return utils.ErrRemoteOffline(err.Error())
	}
	defer closeBody(resp)
	if err := checkStatus(resp); err != nil {
		return err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var eventName string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			s.handleEvent(eventName, data)
		case line == "":
			eventName = ""
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return utils.ErrRemoteOffline(err.Error())
	}
	return ctx.Err()
}

// handleEvent converts one SSE event into a snapshot. The server sends the
// whole node for path "/" and subtree patches for deeper paths; both are
// forwarded and the consumer reconciles against its own state.
func (s *subscription) handleEvent(name, data string) {
	switch name {
	case "put", "patch":
	case "keep-alive", "":
		return
	case "cancel", "auth_revoked":
		s.reportError(utils.ErrRemoteOffline("stream " + name))
		return
	default:
		utils.Debugf("firebase: ignoring stream event %q", name)
		return
	}

	var payload struct {
		Path string          `json:"path"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		s.reportError(fmt.Errorf("decoding stream event: %w", err))
		return
	}

	value, err := decodeNode(bytes.NewReader(payload.Data))
	if err != nil {
		// Scalar leaf writes arrive for deep paths; wrap them so the
		// consumer still sees a keyed value.
		var leaf any
		if jsonErr := json.Unmarshal(payload.Data, &leaf); jsonErr != nil || leaf == nil {
			return
		}
		value = map[string]any{store.LeafValueKey: leaf}
	}

	snap := store.Snapshot{Path: joinEventPath(s.path, payload.Path), Value: value}
	select {
	case s.updates <- snap:
	default:
		// Consumer is behind; drop the stale snapshot, a newer full
		// state follows.
		utils.Debugf("firebase: dropping snapshot for %s, consumer slow", snap.Path)
	}
}

func (s *subscription) reportError(err error) {
	select {
	case s.errors <- err:
	default:
	}
}

// joinEventPath resolves the event-relative path against the subscribed
// node path.
func joinEventPath(base, rel string) string {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return base
	}
	return base + "/" + rel
}
