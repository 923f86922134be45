package docai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client calls the document-understanding service over HTTP. Every call is
// bounded by the configured timeout; errors returned to callers are
// sanitized UpstreamErrors while the underlying cause is logged.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type classifyRequest struct {
	Content  string `json:"content"` // base64
	MimeType string `json:"mime_type"`
}

type extractRequest struct {
	Content      string       `json:"content"` // base64
	DocumentType DocumentType `json:"document_type"`
}

func (c *Client) Classify(ctx context.Context, content []byte, mimeType string) (*Classification, error) {
	req := classifyRequest{
		Content:  base64.StdEncoding.EncodeToString(content),
		MimeType: mimeType,
	}

	var result Classification
	if err := c.post(ctx, "/v1/classify", req, &result); err != nil {
		return nil, c.sanitize("classify", err)
	}

	result.Band = BandFor(result.Confidence)
	if err := result.Validate(); err != nil {
		c.logger.Error().Err(err).Msg("classification response failed validation")
		return nil, &UpstreamError{Op: "classify", Message: "the analysis service returned an unusable result"}
	}
	return &result, nil
}

func (c *Client) Extract(ctx context.Context, content []byte, docType DocumentType) (*RecordSet, error) {
	req := extractRequest{
		Content:      base64.StdEncoding.EncodeToString(content),
		DocumentType: docType,
	}

	var result RecordSet
	if err := c.post(ctx, "/v1/extract", req, &result); err != nil {
		return nil, c.sanitize("extract", err)
	}

	for i := range result.Records {
		if !result.Records[i].Kind.Valid() {
			c.logger.Error().Str("kind", string(result.Records[i].Kind)).Msg("extractor returned unknown record kind")
			return nil, &UpstreamError{Op: "extract", Message: "the analysis service returned an unusable result"}
		}
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read a bounded amount for logging only; never surfaced to users.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(snippet)).
			Msg("document analysis service error")
		return fmt.Errorf("service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// sanitize maps transport failures to user-safe messages. Timeouts and
// cancellations are reported distinctly so retry guidance makes sense.
func (c *Client) sanitize(op string, err error) error {
	c.logger.Error().Err(err).Str("op", op).Msg("document analysis call failed")

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &UpstreamError{Op: op, Message: "document analysis timed out; try again"}
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}
	return &UpstreamError{Op: op, Message: "the document could not be analyzed; try again later"}
}
