package inference

import (
	"context"
	"encoding/json"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

const (
	pathLeafPredict   = "/predict"
	pathLeafRecommend = "/recommend"
	pathLeafHealth    = "/health"
)

// RecommendRequest uses the leaf service's own vocabulary (leaf_curl, mites, ...).
type RecommendRequest struct {
	Disease         string `json:"disease"`
	Severity        string `json:"severity"`
	GrowthStage     string `json:"growth_stage,omitempty"`
	SoilType        string `json:"soil_type,omitempty"`
	District        string `json:"district,omitempty"`
	IncludeAIAdvice bool   `json:"include_ai_advice"`
}

type LeafClient struct {
	c *Client
}

func NewLeafClient(opts Options) (*LeafClient, error) {
	if opts.Service == "" {
		opts.Service = "leaf"
	}
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	return &LeafClient{c: c}, nil
}

// BaseURL is the service root the client was configured with.
func (l *LeafClient) BaseURL() string { return l.c.BaseURL() }

func (l *LeafClient) Detect(ctx context.Context, img domain.Image) (json.RawMessage, error) {
	return l.c.postMultipart(ctx, pathLeafPredict, multipartForm{
		files: []filePart{{field: "image", image: img}},
	})
}

func (l *LeafClient) Recommend(ctx context.Context, req RecommendRequest) (json.RawMessage, error) {
	return l.c.postJSON(ctx, pathLeafRecommend, req)
}

// Health proxies the service's own health probe.
func (l *LeafClient) Health(ctx context.Context) (json.RawMessage, error) {
	return l.c.get(ctx, pathLeafHealth)
}
