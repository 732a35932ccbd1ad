package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/vision-catalog/internal/catalog"
)

// Visual feature axes the analyze endpoint accepts. The ingestion pipeline
// consumes Description only; the remaining axes are requested for parity
// with the service's full analysis and ignored here.
const (
	FeatureDescription = "Description"
	FeatureTags        = "Tags"
	FeatureAdult       = "Adult"
	FeatureColor       = "Color"
	FeatureFaces       = "Faces"
	FeatureImageType   = "ImageType"
	FeatureCategories  = "Categories"
)

// DefaultFeatures is the fixed feature set requested per upload.
var DefaultFeatures = []string{
	FeatureDescription,
	FeatureAdult,
	FeatureColor,
	FeatureFaces,
	FeatureImageType,
	FeatureTags,
	FeatureCategories,
}

// ServiceError wraps any transport, authentication, quota, or
// malformed-response failure from the annotation service. The ingestion
// pipeline treats it as non-fatal.
type ServiceError struct {
	Op     string
	Status int
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("annotation service %s failed with status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("annotation service %s failed: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Config holds the annotation service connection settings. Injected
// explicitly; library code never reads ambient process state.
type Config struct {
	// Endpoint is the service base URL, e.g. https://region.api.cognitive.microsoft.com
	Endpoint string

	// SubscriptionKey authenticates requests (Ocp-Apim-Subscription-Key header)
	SubscriptionKey string

	// Features overrides DefaultFeatures when non-empty
	Features []string
}

// Client calls the visual recognition service's analyze endpoint and
// normalizes responses into catalog annotations.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates an annotation client.
func New(cfg Config) *Client {
	if len(cfg.Features) == 0 {
		cfg.Features = DefaultFeatures
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewWithHTTPClient creates an annotation client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *http.Client) *Client {
	c := New(cfg)
	c.httpClient = httpClient
	return c
}

// analyzeResponse mirrors the service's wire format for the axes we consume.
type analyzeResponse struct {
	Description struct {
		Tags     []string `json:"tags"`
		Captions []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"captions"`
	} `json:"description"`
}

// AnnotateURL analyzes an image the service fetches itself from a resolvable
// URL. Used when the stored original is addressable by the service.
func (c *Client) AnnotateURL(ctx context.Context, imageURL string) (catalog.Annotation, error) {
	body, err := json.Marshal(map[string]string{"url": imageURL})
	if err != nil {
		return catalog.Annotation{}, &ServiceError{Op: "analyze", Err: err}
	}
	return c.analyze(ctx, bytes.NewReader(body), "application/json")
}

// AnnotateBytes analyzes image bytes posted directly to the service. Used
// when the stored original has no service-fetchable address; the caller
// reads the bytes back from the store so the service analyzes exactly what
// was persisted.
func (c *Client) AnnotateBytes(ctx context.Context, r io.Reader) (catalog.Annotation, error) {
	return c.analyze(ctx, r, "application/octet-stream")
}

func (c *Client) analyze(ctx context.Context, body io.Reader, contentType string) (catalog.Annotation, error) {
	analyzeURL := fmt.Sprintf("%s/vision/v3.2/analyze?visualFeatures=%s&language=en",
		strings.TrimRight(c.cfg.Endpoint, "/"),
		url.QueryEscape(strings.Join(c.cfg.Features, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, analyzeURL, body)
	if err != nil {
		return catalog.Annotation{}, &ServiceError{Op: "analyze", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return catalog.Annotation{}, &ServiceError{Op: "analyze", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return catalog.Annotation{}, &ServiceError{
			Op:     "analyze",
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(respBody))),
		}
	}

	var result analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return catalog.Annotation{}, &ServiceError{Op: "analyze", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if len(result.Description.Captions) == 0 {
		return catalog.Annotation{}, &ServiceError{Op: "analyze", Err: fmt.Errorf("response contains no captions")}
	}

	// First caption is the service's highest-confidence entry; tags keep the
	// service-provided order, no dedup or re-sort
	return catalog.Annotation{
		Caption: result.Description.Captions[0].Text,
		Tags:    result.Description.Tags,
	}, nil
}
