package v1

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/papayapulse/pulse-api/internal/core/domain"
	"github.com/papayapulse/pulse-api/middleware"
)

// UserService manages the profile behind each verified identity.
type UserService struct {
	users domain.UserRepository
}

func NewUserService(users domain.UserRepository) *UserService {
	return &UserService{users: users}
}

// CreateOrFetch returns the stored profile for uid, creating it from req when
// absent. created reports whether a new profile was written.
// The verified token email wins over the email in the request body.
func (s *UserService) CreateOrFetch(ctx context.Context, uid, tokenEmail string, req domain.CreateUserRequest) (user *domain.User, created bool, err error) {
	ctx, span := middleware.StartSpan(ctx, "user.create_or_fetch", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", uid),
	))
	defer span.End()

	existing, err := s.users.GetByUID(ctx, uid)
	if err == nil {
		span.SetAttributes(attribute.Bool("user.created", false))
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		return nil, false, err
	}

	user, err = newProfile(uid, tokenEmail, req)
	if err != nil {
		return nil, false, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		// a concurrent first sign-in may have created the same uid
		if errors.Is(err, domain.ErrConflict) {
			if existing, getErr := s.users.GetByUID(ctx, uid); getErr == nil {
				return existing, false, nil
			}
		}
		span.RecordError(err)
		return nil, false, err
	}

	span.SetAttributes(attribute.Bool("user.created", true))
	span.AddEvent("user.created")
	return user, true, nil
}

func newProfile(uid, tokenEmail string, req domain.CreateUserRequest) (*domain.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.Invalid("name", "name is required")
	}
	if strings.TrimSpace(req.Role) == "" {
		return nil, domain.Invalid("role", "role is required")
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return nil, domain.Invalid("role", "role must be farmer or customer")
	}
	if strings.TrimSpace(req.District) == "" {
		return nil, domain.Invalid("district", "district is required")
	}
	district, ok := domain.ParseDistrict(req.District)
	if !ok {
		return nil, domain.Invalid("district", "district must be one of Hambanthota, Matara, Galle")
	}
	email := strings.TrimSpace(tokenEmail)
	if email == "" {
		email = strings.TrimSpace(req.Email)
	}
	if email != "" && !strings.Contains(email, "@") {
		return nil, domain.Invalid("email", "invalid email address")
	}
	return &domain.User{
		UID:      uid,
		Email:    email,
		Name:     name,
		Role:     role,
		District: district,
	}, nil
}

func (s *UserService) Get(ctx context.Context, uid string) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "user.get", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", uid),
	))
	defer span.End()

	user, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		span.SetAttributes(attribute.Bool("user.found", false))
		return nil, err
	}
	span.SetAttributes(attribute.Bool("user.found", true))
	return user, nil
}

func (s *UserService) UpdateName(ctx context.Context, uid string, req domain.UpdateProfileRequest) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "user.update_profile", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", uid),
	))
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.Invalid("name", "name is required")
	}
	user, err := s.users.UpdateName(ctx, uid, name)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("profile.updated", true))
	return user, nil
}

// UploadPhoto stores the picture as a data URI and returns it.
func (s *UserService) UploadPhoto(ctx context.Context, uid string, img domain.Image) (string, error) {
	ctx, span := middleware.StartSpan(ctx, "user.upload_photo", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", uid),
		attribute.Int("photo.size", len(img.Data)),
	))
	defer span.End()

	if len(img.Data) == 0 {
		return "", domain.Invalid("profilePhoto", "No file uploaded")
	}
	if len(img.Data) > domain.MaxProfilePhotoBytes {
		return "", domain.Invalid("profilePhoto", "File too large (max 5MB)")
	}
	contentType := strings.ToLower(strings.TrimSpace(img.ContentType))
	if !strings.HasPrefix(contentType, "image/") {
		return "", domain.Invalid("profilePhoto", "Only image files are allowed")
	}

	photo := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(img.Data))
	if err := s.users.UpdateProfilePhoto(ctx, uid, photo); err != nil {
		span.RecordError(err)
		return "", err
	}
	return photo, nil
}
