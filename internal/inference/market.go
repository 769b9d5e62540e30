package inference

import (
	"context"
	"encoding/json"
)

const (
	// The misspelling is the upstream route name.
	pathBestQualityPrice   = "/martket_data_predict"
	pathFactoryOutletPrice = "/factory_outlet_price_predict"
)

// PriceRequest is the body both price models accept.
type PriceRequest struct {
	District                     string  `json:"district"`
	Variety                      string  `json:"variety"`
	Quality                      string  `json:"quality"`
	CultivationMethode           string  `json:"cultivation_methode"`
	TotalHarvestPapayaUnitsCount int     `json:"total_harvest_papaya_units_count"`
	AvgWeightKg                  float64 `json:"avg_weight_kg"`
	ExpectSellingWeek            int     `json:"expect_selling_week"`
}

type MarketClient struct {
	c *Client
}

func NewMarketClient(opts Options) (*MarketClient, error) {
	if opts.Service == "" {
		opts.Service = "market"
	}
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	return &MarketClient{c: c}, nil
}

// BaseURL is the service root the client was configured with.
func (m *MarketClient) BaseURL() string { return m.c.BaseURL() }

func (m *MarketClient) PredictBestQuality(ctx context.Context, req PriceRequest) (json.RawMessage, error) {
	return m.c.postJSON(ctx, pathBestQualityPrice, req)
}

func (m *MarketClient) PredictFactoryOutlet(ctx context.Context, req PriceRequest) (json.RawMessage, error) {
	return m.c.postJSON(ctx, pathFactoryOutletPrice, req)
}
