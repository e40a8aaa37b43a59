// Package gateway is the single outbound HTTP client to the REST backend.
// It attaches the visitor's active token, forwards the request id and
// clears stale credentials when an authenticated call comes back 401.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coursecompass/storefront/internal/failure"
	"github.com/coursecompass/storefront/internal/identity"
	"github.com/coursecompass/storefront/internal/logging"
)

const (
	maxBodyBytes = 4 << 20
	mimeJSON     = "application/json"
)

// Credentials is the slice of the Token Store the gateway depends on.
type Credentials interface {
	Current(ctx context.Context) (identity.Identity, error)
	Clear(ctx context.Context) error
}

// API is what domain services call. *Caller implements it.
type API interface {
	Do(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (*http.Response, error)
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// JSON is encoded as the request body when set.
	JSON any
	// Multipart takes precedence over JSON.
	Multipart *Multipart
	// Public calls carry no credentials and never clear them.
	Public bool
}

// Multipart is a form upload body.
type Multipart struct {
	Fields map[string]string
	Files  []File
}

// File is one file part of a multipart body.
type File struct {
	Field   string
	Name    string
	Content io.Reader
}

// Response is a fully read backend response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into out.
func (r *Response) Decode(out any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client holds the transport shared by every visitor.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New builds a gateway client for baseURL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout}, logger)
}

// NewWithHTTPClient is New with a caller supplied transport.
func NewWithHTTPClient(baseURL string, hc *http.Client, logger *slog.Logger) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc, logger: logger}
}

// For binds the client to one visitor's credentials.
func (c *Client) For(tokens Credentials) *Caller {
	return &Caller{client: c, tokens: tokens}
}

// Caller is a Client bound to one visitor's credentials.
type Caller struct {
	client *Client
	tokens Credentials
}

// Do sends req and reads the whole response. Non-2xx statuses are returned
// as *StatusError. There are no retries.
func (c *Caller) Do(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, failure.Wrap(failure.KindTransport, "Network error", err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Stream sends req and hands back the open response for a 2xx status.
// The caller must close the body.
func (c *Caller) Stream(ctx context.Context, req Request) (*http.Response, error) {
	return c.send(ctx, req)
}

func (c *Caller) send(ctx context.Context, req Request) (*http.Response, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.http.Do(httpReq)
	if err != nil {
		c.client.logger.Warn("upstream call failed",
			"method", httpReq.Method, "path", req.Path,
			"request_id", logging.RequestID(ctx), "error", err)
		return nil, failure.Wrap(failure.KindTransport, "Network error", err)
	}
	c.client.logger.Debug("upstream call",
		"method", httpReq.Method, "path", req.Path, "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(), "request_id", logging.RequestID(ctx))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	statusErr := newStatusError(resp.StatusCode, body)
	if resp.StatusCode == http.StatusUnauthorized && !req.Public {
		statusErr.expired = true
		if err := c.tokens.Clear(ctx); err != nil {
			c.client.logger.Error("clear credentials after 401", "error", err, "request_id", logging.RequestID(ctx))
		}
	}
	return nil, statusErr
}

func (c *Caller) build(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.client.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var bearer string
	if !req.Public {
		id, err := c.tokens.Current(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve credentials: %w", err)
		}
		if id != nil {
			bearer = id.Token()
		}
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Multipart != nil:
		body, contentType = multipartBody(req.Multipart)
	case req.JSON != nil:
		payload, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body, contentType = bytes.NewReader(payload), mimeJSON
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		if rc, ok := body.(io.Closer); ok {
			rc.Close()
		}
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Multipart != nil {
		// the boundary belongs to the multipart writer
		httpReq.Header.Del("Content-Type")
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", mimeJSON)
	}
	if id := logging.RequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}
	return httpReq, nil
}

func multipartBody(m *Multipart) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeParts(mw, m))
	}()
	return pr, mw.FormDataContentType()
}

func writeParts(mw *multipart.Writer, m *Multipart) error {
	for k, v := range m.Fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	for _, f := range m.Files {
		part, err := mw.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return err
		}
	}
	return mw.Close()
}
