// Package client is the Go SDK for the lookbook service. It exposes the HTTP
// API as typed calls and a retrying Session for generation attempts.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/lookbook-ai/lookbook/pkg/errors"
)

// Config holds HTTP client configuration.
type Config struct {
	// BaseURL is the root of the lookbook API, e.g. "http://localhost:4000".
	BaseURL string

	// Timeout bounds a single HTTP exchange. The server holds a generation
	// request for up to two seconds of simulated latency, so the default
	// leaves plenty of headroom.
	Timeout time.Duration

	MaxConnsPerHost int
}

// DefaultConfig returns sensible defaults for the SDK client.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		Timeout:         30 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// Client is a thin, typed wrapper over the lookbook HTTP API. It performs no
// retries of its own; retry orchestration belongs to Session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// New creates a new SDK client with connection pooling.
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// SetToken sets the bearer token attached to authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the currently held bearer token.
func (c *Client) Token() string {
	return c.token
}

// User is the account identity returned by signup and login.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Generation is one completed generation record as served by the API.
type Generation struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style"`
	ImageURL  string    `json:"imageUrl"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthResult is the outcome of a successful signup or login.
type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers a new account and stores the returned token on the client.
func (c *Client) Signup(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.authenticate(ctx, "/api/v1/auth/signup", email, password)
}

// Login authenticates an existing account and stores the returned token on
// the client.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.authenticate(ctx, "/api/v1/auth/login", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*AuthResult, error) {
	body, err := json.Marshal(credentialsRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}

	var result AuthResult
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	c.token = result.Token
	return &result, nil
}

// GenerationRequest holds the inputs for one generation attempt.
type GenerationRequest struct {
	Prompt string

	Style string

	// ImageFileName is the reference image file name sent in the multipart
	// form, e.g. "reference.jpg".
	ImageFileName string

	// ImageContentType must be image/jpeg or image/png.
	ImageContentType string

	// Image supplies the reference image bytes. Session re-reads it on every
	// attempt, so it must yield the full image each call.
	Image func() (io.Reader, error)
}

// CreateGeneration submits one generation attempt. A 503 from the server maps
// to an overloaded error, which Session treats as retryable.
func (c *Client) CreateGeneration(ctx context.Context, genReq GenerationRequest) (*Generation, error) {
	image, err := genReq.Image()
	if err != nil {
		return nil, fmt.Errorf("open reference image: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("prompt", genReq.Prompt); err != nil {
		return nil, fmt.Errorf("write prompt field: %w", err)
	}
	if err := mw.WriteField("style", genReq.Style); err != nil {
		return nil, fmt.Errorf("write style field: %w", err)
	}

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{
		fmt.Sprintf(`form-data; name="image"; filename=%s`, strconv.Quote(genReq.ImageFileName)),
	}
	header["Content-Type"] = []string{genReq.ImageContentType}
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/generations", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request: %w", err)
	}

	var gen Generation
	if err := decodeResponse(resp, &gen); err != nil {
		return nil, err
	}
	return &gen, nil
}

// ListGenerations fetches up to limit most recent generations, newest first.
// A limit of zero asks for the server default.
func (c *Client) ListGenerations(ctx context.Context, limit int) ([]Generation, error) {
	url := c.baseURL + "/api/v1/generations"
	if limit > 0 {
		url += "?limit=" + strconv.Itoa(limit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list request: %w", err)
	}

	var generations []Generation
	if err := decodeResponse(resp, &generations); err != nil {
		return nil, err
	}
	return generations, nil
}

// FetchAsset downloads a generated image by the URL path stored on a
// generation record (e.g. "/uploads/abc.jpg"). The caller owns the returned
// reader and must close it.
func (c *Client) FetchAsset(ctx context.Context, imageURL string) (io.ReadCloser, error) {
	url := imageURL
	if strings.HasPrefix(imageURL, "/") {
		url = c.baseURL + imageURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asset request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, apperrors.NotFound("asset", imageURL)
		}
		return nil, fmt.Errorf("asset fetch returned status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// envelope mirrors the API response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeResponse consumes the response body and either unmarshals the data
// payload into out or translates the error body into an AppError that
// preserves the server's semantics. 503 maps onto the overload sentinel so
// callers can classify it as retryable.
func decodeResponse(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return fmt.Errorf("lookbook returned status %d (failed to read body: %w)", resp.StatusCode, err)
	}

	var env envelope
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return fmt.Errorf("decode response body: %w", err)
		}
		// Non-envelope error bodies (proxy pages and the like) still map by
		// status, so a 503 stays in the overload class.
		return mapResponseError(resp.StatusCode, "", "", string(bodyBytes))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || env.Data == nil {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
		return nil
	}

	code, message := "", ""
	if env.Error != nil {
		code, message = env.Error.Code, env.Error.Message
	}
	return mapResponseError(resp.StatusCode, code, message, string(bodyBytes))
}

func mapResponseError(status int, code, message, rawBody string) error {
	switch {
	case status == http.StatusServiceUnavailable:
		if code == "" {
			code = "OVERLOADED"
		}
		if message == "" {
			message = "Model overloaded"
		}
		return &apperrors.AppError{
			Code:    code,
			Message: message,
			Status:  http.StatusServiceUnavailable,
			Err:     apperrors.ErrOverloaded,
		}
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(message)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(message)
	case status == http.StatusConflict:
		return &apperrors.AppError{
			Code:    code,
			Message: message,
			Status:  http.StatusConflict,
			Err:     apperrors.ErrAlreadyExists,
		}
	case status == http.StatusNotFound:
		return &apperrors.AppError{
			Code:    code,
			Message: message,
			Status:  http.StatusNotFound,
			Err:     apperrors.ErrNotFound,
		}
	case message != "":
		return &apperrors.AppError{Code: code, Message: message, Status: status}
	default:
		return fmt.Errorf("lookbook returned status %d: %s", status, rawBody)
	}
}
