package psql

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/papayapulse/pulse-api/config"
	database "github.com/papayapulse/pulse-api/internal/core"
	"github.com/papayapulse/pulse-api/internal/core/domain"
)

type RepositorySuite struct {
	suite.Suite

	container testcontainers.Container
	pool      *pgxpool.Pool
	users     *UserRepository
	logs      *PredictionLogRepository
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration suite in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.Require().NoError(err)
	s.container = c

	host, err := c.Host(ctx)
	s.Require().NoError(err)
	port, err := c.MappedPort(ctx, "5432")
	s.Require().NoError(err)

	s.pool, err = database.Connect(ctx, &config.DatabaseConfig{
		Host:           host,
		Port:           port.Port(),
		Name:           "testdb",
		User:           "testuser",
		Password:       "testpass",
		SSLMode:        "disable",
		MaxConnections: 4,
	})
	s.Require().NoError(err)
	s.Require().NoError(EnsureSchema(ctx, s.pool))
	// Second run must be a no-op.
	s.Require().NoError(EnsureSchema(ctx, s.pool))

	s.users = NewUserRepository(s.pool)
	s.logs = NewPredictionLogRepository(s.pool)
}

func (s *RepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *RepositorySuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE users, prediction_logs`)
	s.Require().NoError(err)
}

func (s *RepositorySuite) newUser(uid string) *domain.User {
	return &domain.User{
		UID:      uid,
		Email:    uid + "@example.com",
		Name:     "Nimal " + uid,
		Role:     domain.RoleFarmer,
		District: domain.DistrictGalle,
	}
}

func (s *RepositorySuite) TestCreateAndGetUser() {
	ctx := context.Background()
	u := s.newUser("uid-1")

	s.Require().NoError(s.users.Create(ctx, u))
	s.False(u.CreatedAt.IsZero())

	got, err := s.users.GetByUID(ctx, "uid-1")
	s.Require().NoError(err)
	s.Equal(u.Email, got.Email)
	s.Equal(domain.RoleFarmer, got.Role)
	s.Equal(domain.DistrictGalle, got.District)
	s.Empty(got.ProfilePhoto)
}

func (s *RepositorySuite) TestGetMissingUser() {
	_, err := s.users.GetByUID(context.Background(), "nobody")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RepositorySuite) TestCreateDuplicateUser() {
	ctx := context.Background()
	s.Require().NoError(s.users.Create(ctx, s.newUser("uid-1")))

	err := s.users.Create(ctx, s.newUser("uid-1"))
	s.ErrorIs(err, domain.ErrConflict)

	other := s.newUser("uid-2")
	other.Email = "uid-1@example.com"
	s.ErrorIs(s.users.Create(ctx, other), domain.ErrConflict)
}

func (s *RepositorySuite) TestUpdateNameAndPhoto() {
	ctx := context.Background()
	s.Require().NoError(s.users.Create(ctx, s.newUser("uid-1")))

	updated, err := s.users.UpdateName(ctx, "uid-1", "Kamala")
	s.Require().NoError(err)
	s.Equal("Kamala", updated.Name)

	photo := "data:image/png;base64,iVBORw0KGgo="
	s.Require().NoError(s.users.UpdateProfilePhoto(ctx, "uid-1", photo))

	got, err := s.users.GetByUID(ctx, "uid-1")
	s.Require().NoError(err)
	s.Equal(photo, got.ProfilePhoto)

	_, err = s.users.UpdateName(ctx, "missing", "x")
	s.ErrorIs(err, domain.ErrNotFound)
	s.ErrorIs(s.users.UpdateProfilePhoto(ctx, "missing", photo), domain.ErrNotFound)
}

func (s *RepositorySuite) TestPredictionLogRoundTrip() {
	ctx := context.Background()
	input := json.RawMessage(`{"district":"galle","trees_count":50,"nested":{"a":[1,2.5,"x"]},"note":null}`)
	output := json.RawMessage(`{"predictions":{"yield_per_tree":31.7},"farmer_explanation":["a","b"]}`)

	entry := &domain.PredictionLog{UserID: "uid-1", Type: domain.FeatureHarvest, Input: input, Output: output}
	s.Require().NoError(s.logs.Append(ctx, entry))
	s.NotEmpty(entry.ID)

	got, err := s.logs.ListByUser(ctx, "uid-1", []domain.FeatureType{domain.FeatureHarvest}, 50)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(entry.ID, got[0].ID)
	s.JSONEq(string(input), string(got[0].Input))
	s.JSONEq(string(output), string(got[0].Output))
}

func (s *RepositorySuite) TestHistoryIsCappedAndNewestFirst() {
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

	for i := 0; i < 60; i++ {
		s.Require().NoError(s.logs.Append(ctx, &domain.PredictionLog{
			UserID:    "uid-1",
			Type:      domain.FeatureLeafDisease,
			Input:     json.RawMessage(fmt.Sprintf(`{"i":%d}`, i)),
			Output:    json.RawMessage(`{}`),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := s.logs.ListByUser(ctx, "uid-1", []domain.FeatureType{domain.FeatureLeafDisease}, 500)
	s.Require().NoError(err)
	s.Len(got, domain.MaxHistoryEntries)
	s.JSONEq(`{"i":59}`, string(got[0].Input))
	for i := 1; i < len(got); i++ {
		s.False(got[i].CreatedAt.After(got[i-1].CreatedAt), "entries must be ordered newest first")
	}
}

func (s *RepositorySuite) TestHistoryFiltersByUserAndType() {
	ctx := context.Background()
	add := func(uid string, t domain.FeatureType) {
		s.Require().NoError(s.logs.Append(ctx, &domain.PredictionLog{
			UserID: uid, Type: t, Input: json.RawMessage(`{}`), Output: json.RawMessage(`{}`),
		}))
	}
	add("uid-1", domain.FeatureFarmerQuality)
	add("uid-1", domain.FeatureCustomerQuality)
	add("uid-1", domain.FeatureGrowthStage)
	add("uid-2", domain.FeatureFarmerQuality)

	got, err := s.logs.ListByUser(ctx, "uid-1", []domain.FeatureType{domain.FeatureFarmerQuality}, 50)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(domain.FeatureFarmerQuality, got[0].Type)

	got, err = s.logs.ListByUser(ctx, "uid-1", []domain.FeatureType{domain.FeatureGrowthStage, domain.FeatureHarvest}, 50)
	s.Require().NoError(err)
	s.Len(got, 1)

	got, err = s.logs.ListByUser(ctx, "uid-1", nil, 50)
	s.Require().NoError(err)
	s.Len(got, 3)
}

func (s *RepositorySuite) TestAppendRejectsUnknownType() {
	err := s.logs.Append(context.Background(), &domain.PredictionLog{UserID: "uid-1", Type: "weather"})
	s.Error(err)
}
