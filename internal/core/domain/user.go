package domain

import (
	"time"

	"github.com/frahmantamala/datashare/internal/core/identity"
)

type User struct {
	ID           int64               `json:"id"`
	Email        string              `json:"email"`
	Name         string              `json:"name"`
	PasswordHash string              `json:"-"`
	Role         identity.GlobalRole `json:"role"`
	CreatedAt    time.Time           `json:"created_at"`
}

func (u User) Caller() identity.Caller {
	return identity.NewCaller(u.ID, u.Email, u.Role)
}
