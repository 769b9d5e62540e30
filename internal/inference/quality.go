package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

const (
	pathGradePredict = "/predict"
	pathPapayaType   = "/predict-papaya-type"
)

// GradeFeatures is the label-encoded "data" form field of the grading model.
type GradeFeatures struct {
	District         int `json:"district"`
	Variety          int `json:"variety"`
	Maturity         int `json:"maturity"`
	DaysSincePlucked int `json:"days_since_plucked"`
}

// QualityClient wraps the two grading deployments: the tabular grade model and
// the image classifier.
type QualityClient struct {
	ml *Client
	im *Client
}

func NewQualityClient(ml, im Options) (*QualityClient, error) {
	if ml.Service == "" {
		ml.Service = "quality"
	}
	if im.Service == "" {
		im.Service = "quality-image"
	}
	mlClient, err := New(ml)
	if err != nil {
		return nil, fmt.Errorf("quality client: %w", err)
	}
	imClient, err := New(im)
	if err != nil {
		return nil, fmt.Errorf("quality image client: %w", err)
	}
	return &QualityClient{ml: mlClient, im: imClient}, nil
}

// GradeBestQuality grades a best-quality fruit from its photo and encoded attributes.
func (q *QualityClient) GradeBestQuality(ctx context.Context, img domain.Image, features GradeFeatures) (json.RawMessage, error) {
	data, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("encode grade features: %w", err)
	}
	return q.ml.postMultipart(ctx, pathGradePredict, multipartForm{
		files:  []filePart{{field: "file", image: img}},
		fields: map[string]string{"data": string(data)},
	})
}

// ClassifyFactoryOutlet sorts a factory-outlet fruit into Type A / Type B.
func (q *QualityClient) ClassifyFactoryOutlet(ctx context.Context, img domain.Image) (json.RawMessage, error) {
	return q.im.postMultipart(ctx, pathPapayaType, multipartForm{
		files: []filePart{{field: "image", image: img}},
	})
}

// GradeCustomer grades a fruit photographed by a customer.
func (q *QualityClient) GradeCustomer(ctx context.Context, img domain.Image, weightKg float64) (json.RawMessage, error) {
	form := multipartForm{files: []filePart{{field: "image", image: img}}}
	if weightKg > 0 {
		form.fields = map[string]string{"weight": strconv.FormatFloat(weightKg, 'f', -1, 64)}
	}
	return q.im.postMultipart(ctx, pathPapayaType, form)
}
