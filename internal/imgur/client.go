// Package imgur wraps the Imgur image hosting API. It is the only package
// that speaks to the provider; all request/response shape knowledge lives here.
package imgur

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// maxResponseSize caps how much of a provider response body is read.
const maxResponseSize = 1 << 20 // 1 MB

// Config holds the immutable provider client configuration.
type Config struct {
	// ClientID is the application-level Imgur credential sent with every call.
	ClientID string
	// BaseURL is the API root, e.g. https://api.imgur.com/3.
	BaseURL string
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
	// RequestTimeout bounds the whole request including the body.
	RequestTimeout time.Duration
}

// Client calls the Imgur API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	logger     *slog.Logger
}

// NewClient creates a provider client from the given configuration.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: newHTTPClient(cfg.ConnectTimeout, cfg.RequestTimeout),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		clientID:   cfg.ClientID,
		logger:     logger.With("component", "imgur.client"),
	}
}

// newHTTPClient builds an HTTP client with explicit timeouts.
func newHTTPClient(connectTimeout, requestTimeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: requestTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// UploadInput describes the image bytes to upload. The caller validates
// size and content type before invoking Upload; the client does not.
type UploadInput struct {
	Data        []byte
	Filename    string
	ContentType string
}

// UploadResult is the provider's answer to a successful upload. It is
// consumed once to build the local ownership record and never persisted
// as-is.
type UploadResult struct {
	ImageHash  string
	DeleteHash string
	Link       string
}

// ImageInfo is live image metadata, fetched on demand and never cached.
type ImageInfo struct {
	Link   string
	Type   string
	Width  int
	Height int
	Size   int64
}

// envelope is Imgur's standard JSON response wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Status  int             `json:"status"`
}

// errorData is the data section of a failed response.
type errorData struct {
	Error string `json:"error"`
}

type uploadData struct {
	ID         string `json:"id"`
	DeleteHash string `json:"deletehash"`
	Link       string `json:"link"`
}

type imageData struct {
	Link   string `json:"link"`
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

// Upload posts the image to the provider and returns its identifiers,
// including the delete hash required to reverse the upload later.
func (c *Client) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="image"; filename=%q`, input.Filename))
	header.Set("Content-Type", input.ContentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, &APIError{Op: "upload", cause: fmt.Errorf("build multipart body: %w", err)}
	}
	if _, err := part.Write(input.Data); err != nil {
		return nil, &APIError{Op: "upload", cause: fmt.Errorf("write multipart body: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return nil, &APIError{Op: "upload", cause: fmt.Errorf("close multipart body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image", body)
	if err != nil {
		return nil, &APIError{Op: "upload", cause: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var data uploadData
	if err := c.do(req, "upload", &data); err != nil {
		return nil, err
	}

	c.logger.Info("image uploaded to provider",
		slog.String("image_hash", data.ID),
		slog.Int("size_bytes", len(input.Data)),
	)

	return &UploadResult{
		ImageHash:  data.ID,
		DeleteHash: data.DeleteHash,
		Link:       data.Link,
	}, nil
}

// GetImage fetches live metadata for an image. A failure is the signal the
// caller uses to detect that the remote asset no longer exists.
func (c *Client) GetImage(ctx context.Context, imageHash string) (*ImageInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/image/"+imageHash, nil)
	if err != nil {
		return nil, &APIError{Op: "get", cause: err}
	}

	var data imageData
	if err := c.do(req, "get", &data); err != nil {
		return nil, err
	}

	return &ImageInfo{
		Link:   data.Link,
		Type:   data.Type,
		Width:  data.Width,
		Height: data.Height,
		Size:   data.Size,
	}, nil
}

// Delete removes an image using its delete hash. A repeated delete of the
// same hash fails at the provider and surfaces here as an *APIError; callers
// must not treat it as success.
func (c *Client) Delete(ctx context.Context, deleteHash string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/image/"+deleteHash, nil)
	if err != nil {
		return &APIError{Op: "delete", cause: err}
	}

	return c.do(req, "delete", nil)
}

// do executes the request with provider auth and decodes the response
// envelope into out. Every failure path returns an *APIError.
func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Authorization", "Client-ID "+c.clientID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Imgvault/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: op, cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, cause: fmt.Errorf("read response: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, cause: fmt.Errorf("decode envelope: %w", err)}
	}

	if !env.Success || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: envelopeMessage(env)}
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &APIError{Op: op, StatusCode: resp.StatusCode, cause: fmt.Errorf("decode data: %w", err)}
		}
	}

	return nil
}

// envelopeMessage extracts the provider error message from a failed envelope.
// Imgur reports errors either as {"data":{"error":"..."}} or a bare string.
func envelopeMessage(env envelope) string {
	var ed errorData
	if err := json.Unmarshal(env.Data, &ed); err == nil && ed.Error != "" {
		return ed.Error
	}
	var s string
	if err := json.Unmarshal(env.Data, &s); err == nil {
		return s
	}
	return ""
}
