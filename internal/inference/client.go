// Package inference holds the HTTP clients for the external ML services.
// Clients return the raw JSON body on success; shaping it is the caller's job.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	"github.com/papayapulse/pulse-api/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxResponseBytes bounds every upstream body read.
const maxResponseBytes = 4 << 20

const defaultTimeout = 30 * time.Second

type Options struct {
	// Service names the upstream in errors, hints, spans and metrics.
	Service    string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is the shared transport behind every feature client. No retries.
type Client struct {
	service    string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	service := strings.TrimSpace(opts.Service)
	if service == "" {
		service = "inference"
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		service:    service,
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: hc,
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Service() string { return c.service }

// filePart is one uploaded file of a multipart request.
type filePart struct {
	field string
	image domain.Image
}

type multipartForm struct {
	files  []filePart
	fields map[string]string
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode %s request: %w", c.service, err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", buf.Bytes())
}

func (c *Client) postMultipart(ctx context.Context, path string, form multipartForm) (json.RawMessage, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range form.files {
		filename := f.image.Filename
		if filename == "" {
			filename = "upload.jpg"
		}
		contentType := f.image.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, filename))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("create %s form file: %w", c.service, err)
		}
		if _, err := part.Write(f.image.Data); err != nil {
			return nil, fmt.Errorf("write %s form file: %w", c.service, err)
		}
	}
	for k, v := range form.fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write %s form field: %w", c.service, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close %s form: %w", c.service, err)
	}

	return c.do(ctx, http.MethodPost, path, w.FormDataContentType(), buf.Bytes())
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, "", nil)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (raw json.RawMessage, err error) {
	ctx, span := middleware.StartSpan(ctx, "inference.request", trace.WithAttributes(
		attribute.String("layer", "inference"),
		attribute.String("inference.service", c.service),
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observe(c.service, path, start, err)
		if err != nil {
			span.RecordError(err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.service, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(c.service, c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(c.service, c.baseURL, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseUpstreamError(c.service, resp.StatusCode, data)
	}
	if !json.Valid(data) {
		return nil, &UpstreamError{
			Service:    c.service,
			StatusCode: http.StatusBadGateway,
			Message:    "response body is not valid JSON",
		}
	}
	return json.RawMessage(data), nil
}
