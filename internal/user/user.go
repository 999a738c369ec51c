package user

import (
	"time"

	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/identity"
)

// UserResponse is the API view of a user; it never carries the password hash.
type UserResponse struct {
	ID        int64               `json:"id"`
	Email     string              `json:"email"`
	Name      string              `json:"name"`
	Role      identity.GlobalRole `json:"role"`
	CreatedAt time.Time           `json:"created_at"`
}

// UserProject is one of a user's project assignments.
type UserProject struct {
	AssignmentID int64       `json:"assignment_id"`
	ProjectID    int64       `json:"project_id"`
	ProjectName  string      `json:"project_name"`
	Role         domain.Role `json:"role"`
}

func ToResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func ToResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, ToResponse(u))
	}
	return out
}
