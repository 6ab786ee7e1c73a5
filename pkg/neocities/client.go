// Package neocities is a minimal client for the Neocities web API,
// covering the three calls the uploader needs: login, text upload and
// delete.
package neocities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rake74/AcctForecast/pkg/config"
)

const invalidAuthErrorType = "invalid_auth"

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(cfg *config.NeocitiesConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			ResponseHeaderTimeout: timeout,
			ExpectContinueTimeout: 5 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

type apiResponse struct {
	Result    string `json:"result"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// Login verifies the key against the site info endpoint and keeps it for
// subsequent calls.
func (c *Client) Login(ctx context.Context, apiKey string) error {
	c.apiKey = apiKey

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/info", nil)
	if err != nil {
		return &APIError{Type: ErrorTypeInternal, Message: "build login request", Cause: err}
	}

	return c.do(req)
}

// UploadText sends each entry of files as the named file's full content.
func (c *Client) UploadText(ctx context.Context, files map[string]string) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for name, content := range files {
		part, err := writer.CreateFormFile(name, name)
		if err != nil {
			return &APIError{Type: ErrorTypeInternal, Message: "build multipart body", Cause: err}
		}
		if _, err := io.WriteString(part, content); err != nil {
			return &APIError{Type: ErrorTypeInternal, Message: "build multipart body", Cause: err}
		}
	}

	if err := writer.Close(); err != nil {
		return &APIError{Type: ErrorTypeInternal, Message: "build multipart body", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return &APIError{Type: ErrorTypeInternal, Message: "build upload request", Cause: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

// Delete removes the named files from the site.
func (c *Client) Delete(ctx context.Context, filenames ...string) error {
	form := url.Values{}
	for _, name := range filenames {
		form.Add("filenames[]", name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/delete", strings.NewReader(form.Encode()))
	if err != nil {
		return &APIError{Type: ErrorTypeInternal, Message: "build delete request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

func (c *Client) do(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Type: ErrorTypeNetwork, Message: "request failed", Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return &APIError{
			Type:    ErrorTypeInternal,
			Message: fmt.Sprintf("decode response (status %d)", resp.StatusCode),
			Cause:   err,
		}
	}

	if parsed.Result == "success" {
		return nil
	}

	if parsed.ErrorType == invalidAuthErrorType || resp.StatusCode == http.StatusForbidden {
		return &APIError{Type: ErrorTypeAuth, Message: parsed.Message}
	}

	return &APIError{Type: ErrorTypeOp, Message: parsed.Message}
}
