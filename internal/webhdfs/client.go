// Package webhdfs is a small client for the WebHDFS REST gateway.
//
// Writes and reads are two-phase: the gateway answers the first request with
// a 307 whose Location names a data node, and the bytes move in a second
// request to that node. The client never retries; callers decide.
package webhdfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/pkg/logger"
)

// maxErrorBody bounds how much of a failed response we keep for the error.
const maxErrorBody = 64 << 10

// Client talks to one gateway as one service-account user.
type Client struct {
	gateway string
	user    string

	// gatewayHTTP must not follow redirects: the 307 is the answer.
	gatewayHTTP *http.Client
	dataHTTP    *http.Client

	l *logger.Logger
	m *metrics.Metrics
}

// New creates a Client. gateway is the REST root, e.g.
// http://namenode:50070/webhdfs/v1. A nil httpClient uses http.DefaultClient.
func New(gateway, user string, httpClient *http.Client, l *logger.Logger, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	noRedirect := *httpClient
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		gateway:     strings.TrimRight(gateway, "/"),
		user:        user,
		gatewayHTTP: &noRedirect,
		dataHTTP:    httpClient,
		l:           l,
		m:           m,
	}
}

// EnsureDirectory asks the gateway to create dir and its parents. Failure is
// not fatal: the directory usually exists already, so we only warn.
func (c *Client) EnsureDirectory(ctx context.Context, dir string) {
	q := url.Values{}
	q.Set("op", "MKDIRS")
	q.Set("user.name", c.user)

	resp, err := c.send(ctx, c.gatewayHTTP, http.MethodPut, c.endpoint(dir, q), nil, "")
	if err != nil {
		c.m.StoreRequests.WithLabelValues("mkdirs", "warning").Inc()
		c.l.Warning("could not create directory", map[string]any{"dir": dir, "err": err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.m.StoreRequests.WithLabelValues("mkdirs", "warning").Inc()
		c.l.Warning("could not create directory", map[string]any{
			"dir":    dir,
			"status": resp.StatusCode,
			"body":   readBody(resp),
		})
		return
	}
	c.m.StoreRequests.WithLabelValues("mkdirs", "ok").Inc()
}

// Write stores data at p. The parent directory is created first (best
// effort), then the CREATE redirect is followed with the payload.
func (c *Client) Write(ctx context.Context, p string, data []byte, overwrite bool) error {
	c.EnsureDirectory(ctx, path.Dir(p))

	q := url.Values{}
	q.Set("op", "CREATE")
	q.Set("user", c.user)
	q.Set("overwrite", strconv.FormatBool(overwrite))

	location, err := c.redirect(ctx, http.MethodPut, "create", p, q)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, c.dataHTTP, http.MethodPut, location, bytes.NewReader(data), "application/json")
	if err != nil {
		c.m.StoreRequests.WithLabelValues("create", "error").Inc()
		return &TransportError{Op: "write", Path: p, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		c.m.StoreRequests.WithLabelValues("create", "error").Inc()
		return &TransportError{Op: "write", Path: p, StatusCode: resp.StatusCode, Body: readBody(resp)}
	}

	c.m.StoreRequests.WithLabelValues("create", "ok").Inc()
	c.l.Info("data written to store", map[string]any{"path": p, "bytes": len(data)})
	return nil
}

// Read returns the content stored at p.
func (c *Client) Read(ctx context.Context, p string) ([]byte, error) {
	q := url.Values{}
	q.Set("op", "OPEN")
	q.Set("user", c.user)

	location, err := c.redirect(ctx, http.MethodGet, "open", p, q)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, c.dataHTTP, http.MethodGet, location, nil, "")
	if err != nil {
		c.m.StoreRequests.WithLabelValues("open", "error").Inc()
		return nil, &TransportError{Op: "read", Path: p, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.m.StoreRequests.WithLabelValues("open", "error").Inc()
		return nil, &TransportError{Op: "read", Path: p, StatusCode: resp.StatusCode, Body: readBody(resp)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.m.StoreRequests.WithLabelValues("open", "error").Inc()
		return nil, &TransportError{Op: "read", Path: p, Err: fmt.Errorf("read body: %w", err)}
	}

	c.m.StoreRequests.WithLabelValues("open", "ok").Inc()
	return data, nil
}

// redirect performs the first phase and returns the data node location.
func (c *Client) redirect(ctx context.Context, method, op, p string, q url.Values) (string, error) {
	resp, err := c.send(ctx, c.gatewayHTTP, method, c.endpoint(p, q), nil, "")
	if err != nil {
		c.m.StoreRequests.WithLabelValues(op, "error").Inc()
		return "", &TransportError{Op: op, Path: p, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTemporaryRedirect {
		c.m.StoreRequests.WithLabelValues(op, "error").Inc()
		return "", &TransportError{Op: op, Path: p, StatusCode: resp.StatusCode, Body: readBody(resp)}
	}

	loc, err := resp.Location()
	if err != nil {
		c.m.StoreRequests.WithLabelValues(op, "error").Inc()
		return "", &TransportError{Op: op, Path: p, StatusCode: resp.StatusCode, Err: errNoLocation}
	}
	return loc.String(), nil
}

func (c *Client) endpoint(p string, q url.Values) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return c.gateway + p + "?" + q.Encode()
}

func (c *Client) send(ctx context.Context, hc *http.Client, method, target string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.l.Debug("webhdfs request", map[string]any{"method": method, "url": target})
	return hc.Do(req)
}

func readBody(resp *http.Response) string {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
