package user

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/access"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/events"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/frahmantamala/datashare/internal/gateway"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
)

type Publisher interface {
	PublishSync(ctx context.Context, event events.Event) error
}

// ServiceAPI is the admin user-management surface.
type ServiceAPI interface {
	List(ctx context.Context, caller identity.Caller) ([]UserResponse, error)
	Get(ctx context.Context, caller identity.Caller, id string) (*UserResponse, error)
	Create(ctx context.Context, caller identity.Caller, dto CreateUserDTO) (*UserResponse, error)
	Delete(ctx context.Context, caller identity.Caller, id string) error
	Projects(ctx context.Context, caller identity.Caller, id string) ([]UserProject, error)
}

type Service struct {
	gw         gateway.Gateway
	publisher  Publisher
	bcryptCost int
	logger     *slog.Logger
}

func NewService(gw gateway.Gateway, publisher Publisher, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		gw:         gw,
		publisher:  publisher,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func requireAdmin(caller identity.Caller) error {
	if !caller.Authenticated() {
		return internal.ErrNotAuthenticated
	}
	if !access.CanManage(caller) {
		return internal.ErrNotAuthorized
	}
	return nil
}

func (s *Service) List(ctx context.Context, caller identity.Caller) ([]UserResponse, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	users, err := s.gw.ListUsers(ctx)
	if err != nil {
		return nil, gateway.Wrap("list users", err, true)
	}
	return ToResponses(users), nil
}

func (s *Service) Get(ctx context.Context, caller identity.Caller, id string) (*UserResponse, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	u, err := s.gw.GetUser(ctx, id)
	if err != nil {
		return nil, gateway.Wrap("get user", err, true)
	}
	resp := ToResponse(*u)
	return &resp, nil
}

func (s *Service) Create(ctx context.Context, caller identity.Caller, dto CreateUserDTO) (*UserResponse, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	role, _ := identity.ParseGlobalRole(dto.Role)

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	u := &domain.User{
		Email:        dto.Email,
		Name:         dto.Name,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.gw.CreateUser(ctx, u); err != nil {
		return nil, gateway.Wrap("create user", err, false)
	}

	s.logger.Info("user created", "user_id", u.ID, "role", u.Role, "created_by", caller.ID)
	resp := ToResponse(*u)
	return &resp, nil
}

// Delete removes a user together with their assignments. Every cached
// session is invalidated and the deleted user's own session is dropped.
func (s *Service) Delete(ctx context.Context, caller identity.Caller, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if identity.Same(caller.ID, id) {
		return internal.NewValidationError("admins cannot delete their own account", internal.ErrCodeValidationFailed)
	}

	if err := s.gw.DeleteUser(ctx, id); err != nil {
		return gateway.Wrap("delete user", err, false)
	}

	s.logger.Info("user deleted", "user_id", id, "deleted_by", caller.ID)

	if s.publisher != nil {
		if err := s.publisher.PublishSync(ctx, events.NewUserDeletedEvent(identity.Normalize(id), caller.ID)); err != nil {
			s.logger.Error("user deleted event failed", "user_id", id, "error", err)
		}
	}
	return nil
}

// Projects lists the assignments of user id with project names. Assignments
// whose project no longer exists are skipped.
func (s *Service) Projects(ctx context.Context, caller identity.Caller, id string) ([]UserProject, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if _, err := s.gw.GetUser(ctx, id); err != nil {
		return nil, gateway.Wrap("get user", err, true)
	}

	assignments, err := s.gw.ListProjectAssignments(ctx, gateway.AssignmentFilter{UserID: identity.Normalize(id)})
	if err != nil {
		return nil, gateway.Wrap("list assignments", err, true)
	}

	ids := lo.Uniq(lo.Map(assignments, func(a domain.Assignment, _ int) int64 { return a.ProjectID }))
	projects, err := s.gw.ListProjects(ctx, gateway.ProjectFilter{IDs: ids})
	if err != nil {
		return nil, gateway.Wrap("list projects", err, true)
	}
	names := lo.SliceToMap(projects, func(p domain.Project) (int64, string) { return p.ID, p.Name })

	out := make([]UserProject, 0, len(assignments))
	for _, a := range assignments {
		name, ok := names[a.ProjectID]
		if !ok {
			continue
		}
		out = append(out, UserProject{
			AssignmentID: a.ID,
			ProjectID:    a.ProjectID,
			ProjectName:  name,
			Role:         a.Role,
		})
	}
	return out, nil
}
