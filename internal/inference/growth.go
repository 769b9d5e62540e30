package inference

import (
	"context"
	"encoding/json"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

const (
	pathStagePredict   = "/stage_predict"
	pathHarvestPredict = "/growth_predict"
)

// GrowthClient talks to the growth service: stage classification and harvest estimates.
type GrowthClient struct {
	c *Client
}

func NewGrowthClient(opts Options) (*GrowthClient, error) {
	if opts.Service == "" {
		opts.Service = "growth"
	}
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	return &GrowthClient{c: c}, nil
}

// BaseURL is the service root the client was configured with.
func (g *GrowthClient) BaseURL() string { return g.c.BaseURL() }

func (g *GrowthClient) ClassifyStage(ctx context.Context, img domain.Image) (json.RawMessage, error) {
	return g.c.postMultipart(ctx, pathStagePredict, multipartForm{
		files: []filePart{{field: "image", image: img}},
	})
}

func (g *GrowthClient) PredictHarvest(ctx context.Context, req domain.HarvestRequest) (json.RawMessage, error) {
	return g.c.postJSON(ctx, pathHarvestPredict, req)
}
