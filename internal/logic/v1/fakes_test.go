package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	"github.com/papayapulse/pulse-api/internal/events"
	"github.com/papayapulse/pulse-api/internal/inference"
)

type fakeUsers struct {
	mu        sync.Mutex
	byUID     map[string]*domain.User
	createErr error
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{byUID: map[string]*domain.User{}}
	for _, u := range users {
		f.byUID[u.UID] = u
	}
	return f
}

func (f *fakeUsers) GetByUID(_ context.Context, uid string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byUID[uid]
	if !ok {
		return nil, fmt.Errorf("get user %q: %w", uid, domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byUID[user.UID]; ok {
		return fmt.Errorf("create user %q: %w", user.UID, domain.ErrConflict)
	}
	cp := *user
	f.byUID[user.UID] = &cp
	return nil
}

func (f *fakeUsers) UpdateName(_ context.Context, uid, name string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byUID[uid]
	if !ok {
		return nil, fmt.Errorf("update user %q: %w", uid, domain.ErrNotFound)
	}
	u.Name = name
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdateProfilePhoto(_ context.Context, uid, photo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byUID[uid]
	if !ok {
		return fmt.Errorf("update photo for %q: %w", uid, domain.ErrNotFound)
	}
	u.ProfilePhoto = photo
	return nil
}

type fakeLogs struct {
	mu        sync.Mutex
	entries   []domain.PredictionLog
	appendErr error
	listErr   error
	gotTypes  []domain.FeatureType
	gotLimit  int
}

func (f *fakeLogs) Append(_ context.Context, entry *domain.PredictionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	entry.ID = fmt.Sprintf("log-%d", len(f.entries)+1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLogs) ListByUser(_ context.Context, userID string, types []domain.FeatureType, limit int) ([]domain.PredictionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotTypes, f.gotLimit = types, limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.PredictionLog
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].UserID == userID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeLogs) only() domain.PredictionLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) != 1 {
		panic(fmt.Sprintf("want exactly one log entry, have %d", len(f.entries)))
	}
	return f.entries[0]
}

type fakePublisher struct {
	events []events.PredictionEvent
	err    error
}

func (f *fakePublisher) PublishPrediction(_ context.Context, e events.PredictionEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

// reply is a canned upstream answer.
type reply struct {
	body string
	err  error
}

func (r reply) get() (json.RawMessage, error) {
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.body), nil
}

type fakeGrowth struct {
	stage, harvest reply
	gotHarvest     domain.HarvestRequest
	calls          int
}

func (f *fakeGrowth) ClassifyStage(context.Context, domain.Image) (json.RawMessage, error) {
	f.calls++
	return f.stage.get()
}

func (f *fakeGrowth) PredictHarvest(_ context.Context, req domain.HarvestRequest) (json.RawMessage, error) {
	f.calls++
	f.gotHarvest = req
	return f.harvest.get()
}

type fakeQuality struct {
	best, factory, customer reply
	gotFeatures             inference.GradeFeatures
	gotWeight               float64
	called                  string
}

func (f *fakeQuality) GradeBestQuality(_ context.Context, _ domain.Image, features inference.GradeFeatures) (json.RawMessage, error) {
	f.called, f.gotFeatures = "best", features
	return f.best.get()
}

func (f *fakeQuality) ClassifyFactoryOutlet(context.Context, domain.Image) (json.RawMessage, error) {
	f.called = "factory"
	return f.factory.get()
}

func (f *fakeQuality) GradeCustomer(_ context.Context, _ domain.Image, weightKg float64) (json.RawMessage, error) {
	f.called, f.gotWeight = "customer", weightKg
	return f.customer.get()
}

type fakeMarket struct {
	best, factory reply
	got           inference.PriceRequest
	called        string
}

func (f *fakeMarket) PredictBestQuality(_ context.Context, req inference.PriceRequest) (json.RawMessage, error) {
	f.called, f.got = "best", req
	return f.best.get()
}

func (f *fakeMarket) PredictFactoryOutlet(_ context.Context, req inference.PriceRequest) (json.RawMessage, error) {
	f.called, f.got = "factory", req
	return f.factory.get()
}

type fakeLeaf struct {
	detect, recommend, health reply
	gotRecommend              inference.RecommendRequest
}

func (f *fakeLeaf) Detect(context.Context, domain.Image) (json.RawMessage, error) {
	return f.detect.get()
}

func (f *fakeLeaf) Recommend(_ context.Context, req inference.RecommendRequest) (json.RawMessage, error) {
	f.gotRecommend = req
	return f.recommend.get()
}

func (f *fakeLeaf) Health(context.Context) (json.RawMessage, error) {
	return f.health.get()
}

var errRefused = &inference.UnavailableError{
	Service: "growth",
	BaseURL: "http://localhost:5000",
	Err:     errors.New("connect: connection refused"),
}

var testImage = domain.Image{Filename: "fruit.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff, 0xe0}}
