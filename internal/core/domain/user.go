package domain

import (
	"strings"
	"time"
)

// Role is the kind of account a profile belongs to.
type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleCustomer Role = "customer"
)

// ParseRole matches a role case-insensitively.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleFarmer):
		return RoleFarmer, true
	case string(RoleCustomer):
		return RoleCustomer, true
	}
	return "", false
}

// District is one of the supported growing districts.
type District string

const (
	DistrictHambanthota District = "Hambanthota"
	DistrictMatara      District = "Matara"
	DistrictGalle       District = "Galle"
)

// ParseDistrict matches a district case-insensitively.
// "Hambantota" is accepted as an alternate spelling.
func ParseDistrict(s string) (District, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hambanthota", "hambantota":
		return DistrictHambanthota, true
	case "matara":
		return DistrictMatara, true
	case "galle":
		return DistrictGalle, true
	}
	return "", false
}

// MaxProfilePhotoBytes caps an uploaded profile photo.
const MaxProfilePhotoBytes = 5 << 20

type User struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	District     District  `json:"district"`
	ProfilePhoto string    `json:"profilePhoto,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreateUserRequest is only read when no profile exists yet, so its fields are
// checked on the create path rather than at binding time.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	District string `json:"district"`
}

type UpdateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}
