// Package client is the client side of the pipeline: it talks to the server
// over REST and owns the files the server could not keep.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"docchat/internal/api"
	"docchat/internal/models"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps well known status codes onto the shared sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusBadRequest:
		return models.ErrInvalidInput
	case http.StatusConflict:
		return models.ErrInvalidTransition
	case http.StatusBadGateway:
		return models.ErrCompletionService
	}
	return nil
}

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

func (c *APIClient) Upload(ctx context.Context, filename string, data []byte) (api.UploadResponse, error) {
	var out api.UploadResponse
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return out, err
	}
	if _, err := fw.Write(data); err != nil {
		return out, err
	}
	if err := mw.Close(); err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-file", &buf)
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return out, err
	}
	return out, json.NewDecoder(resp.Body).Decode(&out)
}

func (c *APIClient) Files(ctx context.Context) ([]models.File, error) {
	var out api.FilesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/files", nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

func (c *APIClient) Status(ctx context.Context, fileID string) (api.FileStatusResponse, error) {
	var out api.FileStatusResponse
	err := c.doJSON(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/status", nil, &out)
	return out, err
}

func (c *APIClient) Reindex(ctx context.Context, fileID string) (api.ReindexResponse, error) {
	var out api.ReindexResponse
	err := c.doJSON(ctx, http.MethodPost, "/files/"+url.PathEscape(fileID)+"/reindex", nil, &out)
	return out, err
}

func (c *APIClient) Delete(ctx context.Context, fileID string) error {
	var out api.MessageResponse
	return c.doJSON(ctx, http.MethodDelete, "/files/"+url.PathEscape(fileID), nil, &out)
}

func (c *APIClient) PreIndexed(ctx context.Context, req api.PreIndexedRequest) (api.PreIndexedResponse, error) {
	var out api.PreIndexedResponse
	err := c.doJSON(ctx, http.MethodPost, "/pre-indexed-file", req, &out)
	return out, err
}

// ChatFile streams a grounded answer into onToken and returns the session id.
func (c *APIClient) ChatFile(ctx context.Context, req api.ChatFileRequest, onToken func(string) error) (string, error) {
	resp, err := c.stream(ctx, "/chat-file", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return resp.Header.Get(api.SessionHeader), readTokens(resp.Body, onToken)
}

func (c *APIClient) Chat(ctx context.Context, req api.ChatRequest, onToken func(string) error) error {
	resp, err := c.stream(ctx, "/chat", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return readTokens(resp.Body, onToken)
}

func (c *APIClient) Sessions(ctx context.Context) ([]models.ChatSession, error) {
	var out api.SessionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/chat-history", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *APIClient) Session(ctx context.Context, sessionID string) (models.ChatSession, error) {
	var out models.ChatSession
	err := c.doJSON(ctx, http.MethodGet, "/chat-history/"+url.PathEscape(sessionID), nil, &out)
	return out, err
}

func (c *APIClient) stream(ctx context.Context, path string, body any) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/plain")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	var errResp api.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	msg := errResp.Error
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// readTokens forwards the body as it arrives, holding back a trailing
// partial rune until the rest of it is read.
func readTokens(body io.Reader, onToken func(string) error) error {
	buf := make([]byte, 4096)
	var carry []byte
	for {
		n, err := body.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			cut := completeRunes(data)
			carry = append([]byte(nil), data[cut:]...)
			if cut > 0 {
				if cbErr := onToken(string(data[:cut])); cbErr != nil {
					return cbErr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			if len(carry) > 0 {
				return onToken(string(carry))
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func completeRunes(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}
