// Package request implements the HTTP layer of the copr client: endpoint
// building, token authentication, JSON decoding, API error mapping, and
// optional retry of idempotent requests.
package request

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/eclipseo/copr/config"
	"github.com/eclipseo/copr/errors"
	"github.com/eclipseo/copr/internal/logfields"
)

// apiPrefix is the copr frontend API v3 root.
const apiPrefix = "/api_3"

const userAgent = "go-copr"

// Sender performs authenticated requests against a copr frontend.
type Sender struct {
	baseURL string
	login   string
	token   string
	client  *http.Client
	policy  Policy
}

// Option customizes a Sender.
type Option func(*Sender)

// WithHTTPClient replaces the underlying http.Client (timeouts, proxies,
// test transports).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRetryPolicy enables transport-level retries of idempotent requests.
func WithRetryPolicy(p Policy) Option {
	return func(s *Sender) { s.policy = p }
}

// NewSender creates a Sender from the client configuration. Retries are
// disabled by default.
func NewSender(cfg *config.Config, opts ...Option) *Sender {
	s := &Sender{
		baseURL: cfg.BaseURL(),
		login:   cfg.Login,
		token:   cfg.Token,
		client:  &http.Client{Timeout: 2 * time.Minute},
		policy:  Policy{Mode: BackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 0},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get performs a GET against an api_3 endpoint. params, when non-nil, is a
// struct encoded into the query string via go-querystring url tags. The
// JSON response body is decoded into out.
func (s *Sender) Get(ctx context.Context, endpoint string, params any, out any) error {
	u := s.endpointURL(endpoint)
	if params != nil {
		values, err := query.Values(params)
		if err != nil {
			return errors.Wrap(err, errors.KindUsage, "cannot encode query parameters")
		}
		if encoded := values.Encode(); encoded != "" {
			u += "?" + encoded
		}
	}
	return s.do(ctx, http.MethodGet, u, nil, "", out, true)
}

// PostForm performs a form-encoded POST.
func (s *Sender) PostForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	body := strings.NewReader(form.Encode())
	return s.do(ctx, http.MethodPost, s.endpointURL(endpoint), body, "application/x-www-form-urlencoded", out, false)
}

// PostMultipart performs a multipart POST uploading the file at path under
// fileField, with the remaining fields as ordinary form values. The file is
// buffered through a pipe-free in-memory body; copr source uploads (spec
// files, srpms) are small enough for that.
func (s *Sender) PostMultipart(ctx context.Context, endpoint string, fields map[string]string, fileField, path string, out any) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.KindUsage, "cannot open upload file")
	}
	defer file.Close()

	var buf strings.Builder
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return errors.Wrap(err, errors.KindRequest, "cannot build multipart body")
		}
	}
	part, err := writer.CreateFormFile(fileField, filepath.Base(path))
	if err != nil {
		return errors.Wrap(err, errors.KindRequest, "cannot build multipart body")
	}
	if _, err := io.Copy(part, file); err != nil {
		return errors.Wrap(err, errors.KindRequest, "cannot read upload file")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, errors.KindRequest, "cannot finalize multipart body")
	}
	return s.do(ctx, http.MethodPost, s.endpointURL(endpoint), strings.NewReader(buf.String()), writer.FormDataContentType(), out, false)
}

// Put performs a bodyless PUT (build cancellation).
func (s *Sender) Put(ctx context.Context, endpoint string, out any) error {
	return s.do(ctx, http.MethodPut, s.endpointURL(endpoint), nil, "", out, false)
}

// Delete performs a DELETE.
func (s *Sender) Delete(ctx context.Context, endpoint string, out any) error {
	return s.do(ctx, http.MethodDelete, s.endpointURL(endpoint), nil, "", out, false)
}

func (s *Sender) endpointURL(endpoint string) string {
	return s.baseURL + apiPrefix + endpoint
}

// apiError is the error envelope the copr frontend returns on failures.
type apiError struct {
	Error string `json:"error"`
}

// do executes the request, retrying idempotent calls on transport failures
// and 5xx responses when a retry policy is configured.
func (s *Sender) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string, out any, idempotent bool) error {
	var bodyText string
	if body != nil {
		// Retries need a rewindable body; everything the sender builds is
		// already an in-memory string.
		data, err := io.ReadAll(body)
		if err != nil {
			return errors.Wrap(err, errors.KindRequest, "cannot read request body")
		}
		bodyText = string(data)
	}

	retries := 0
	for {
		err := s.doOnce(ctx, method, rawURL, bodyText, contentType, out)
		if err == nil {
			return nil
		}
		if !idempotent || retries >= s.policy.MaxRetries || !retryable(err) {
			return err
		}
		retries++
		delay := s.policy.Delay(retries)
		slog.Warn("Transient request error, retrying",
			logfields.KeyMethod, method,
			logfields.KeyURL, rawURL,
			"retry", retries,
			"max_retries", s.policy.MaxRetries,
			"delay", delay,
			logfields.KeyError, err.Error(),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Sender) doOnce(ctx context.Context, method, rawURL, bodyText, contentType string, out any) error {
	var body io.Reader
	if bodyText != "" {
		body = strings.NewReader(bodyText)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return errors.Wrap(err, errors.KindUsage, "cannot build request")
	}
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.login != "" && s.token != "" {
		req.SetBasicAuth(s.login, s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &errors.Error{Kind: errors.KindRequest, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.KindRequest, "cannot decode response")
	}
	return nil
}

// responseError maps a non-2xx response to a structured error, extracting
// the frontend's error envelope when present.
func responseError(resp *http.Response) *errors.Error {
	message := fmt.Sprintf("request to %s failed with %s", resp.Request.URL.Path, resp.Status)
	var envelope apiError
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != "" {
		message = envelope.Error
	}

	kind := errors.KindRequest
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		kind = errors.KindAuth
	}
	return &errors.Error{Kind: kind, Message: message, StatusCode: resp.StatusCode}
}

// retryable reports whether an error is worth retrying: transport failures
// and server-side 5xx responses. Auth and client errors never are.
func retryable(err error) bool {
	code := errors.StatusCode(err)
	if code == 0 {
		return errors.IsKind(err, errors.KindRequest)
	}
	return code >= 500
}
