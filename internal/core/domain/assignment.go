package domain

import "time"

// Assignment grants one user a role on one project. UserID is normalized;
// Email is a snapshot taken when the grant was made.
type Assignment struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
