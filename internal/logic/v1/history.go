package v1

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	"github.com/papayapulse/pulse-api/middleware"
)

// HistoryService reads back the prediction log for the history screens.
type HistoryService struct {
	logs domain.PredictionLogRepository
}

func NewHistoryService(logs domain.PredictionLogRepository) *HistoryService {
	return &HistoryService{logs: logs}
}

// List returns the caller's newest entries of the given types, at most
// domain.MaxHistoryEntries. It never returns nil.
func (s *HistoryService) List(ctx context.Context, userID string, types ...domain.FeatureType) ([]domain.PredictionLog, error) {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	ctx, span := middleware.StartSpan(ctx, "history.list", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
		attribute.String("history.types", strings.Join(names, ",")),
	))
	defer span.End()

	entries, err := s.logs.ListByUser(ctx, userID, types, domain.MaxHistoryEntries)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list %s history: %w", strings.Join(names, "+"), err)
	}
	if len(entries) > domain.MaxHistoryEntries {
		entries = entries[:domain.MaxHistoryEntries]
	}
	if entries == nil {
		entries = []domain.PredictionLog{}
	}
	span.SetAttributes(attribute.Int("history.count", len(entries)))
	return entries, nil
}
