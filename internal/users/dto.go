package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/sabunku/storefront-backend/pkg/db/models"
)

// AdminDTO is the public view of an admin account.
type AdminDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// FromModel maps the admin model, dropping the password hash.
func FromModel(admin *models.AdminUser) *AdminDTO {
	if admin == nil {
		return nil
	}
	return &AdminDTO{
		ID:          admin.ID,
		Email:       admin.Email,
		LastLoginAt: admin.LastLoginAt,
	}
}
