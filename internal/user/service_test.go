package user_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/events"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/frahmantamala/datashare/internal/gateway/gatewaytest"
	"github.com/frahmantamala/datashare/internal/user"
	"github.com/frahmantamala/datashare/pkg/logger"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Suite")
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) PublishSync(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return p.err
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		mem       *gatewaytest.Memory
		publisher *recordingPublisher
		svc       *user.Service
		admin     identity.Caller
		standard  identity.Caller
	)

	BeforeEach(func() {
		ctx = context.Background()
		mem = gatewaytest.NewMemory()
		publisher = &recordingPublisher{}
		svc = user.NewService(mem, publisher, bcrypt.MinCost, logger.Discard())

		a := &domain.User{Email: "admin@example.com", Name: "Admin", Role: identity.RoleAdmin}
		Expect(mem.CreateUser(ctx, a)).To(Succeed())
		u := &domain.User{Email: "ana@example.com", Name: "Ana", Role: identity.RoleUser}
		Expect(mem.CreateUser(ctx, u)).To(Succeed())
		admin, standard = a.Caller(), u.Caller()
	})

	Describe("admin gate", func() {
		It("forbids standard users from every operation", func() {
			_, err := svc.List(ctx, standard)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

			_, err = svc.Create(ctx, standard, user.CreateUserDTO{Email: "x@example.com", Name: "X", Password: "password1"})
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

			err = svc.Delete(ctx, standard, admin.ID)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
		})

		It("reports anonymous callers as unauthenticated", func() {
			_, err := svc.List(ctx, identity.Caller{})
			Expect(errors.Is(err, internal.ErrNotAuthenticated)).To(BeTrue())
		})
	})

	Describe("Create", func() {
		It("hashes the password and defaults the role", func() {
			// When
			created, err := svc.Create(ctx, admin, user.CreateUserDTO{
				Email:    "  Bo@Example.com",
				Name:     "Bo",
				Password: "password1",
			})

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(created.Email).To(Equal("bo@example.com"))
			Expect(created.Role).To(Equal(identity.RoleUser))

			stored, err := mem.GetUserByEmail(ctx, "bo@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password1"))).To(Succeed())
		})

		It("rejects a duplicate email as a conflict", func() {
			_, err := svc.Create(ctx, admin, user.CreateUserDTO{Email: "ana@example.com", Name: "Ana 2", Password: "password1"})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusConflict))
			Expect(appErr.Code).To(Equal(internal.ErrCodeDuplicateEmail))
		})

		It("rejects an unknown role", func() {
			_, err := svc.Create(ctx, admin, user.CreateUserDTO{Email: "c@example.com", Name: "C", Password: "password1", Role: "owner"})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))
		})
	})

	Describe("Delete", func() {
		It("cascades assignments and announces the deletion", func() {
			// Given ana is assigned to a project
			p := &domain.Project{Name: "Sales"}
			Expect(mem.CreateProject(ctx, p)).To(Succeed())
			Expect(mem.CreateProjectAssignment(ctx, &domain.Assignment{ProjectID: p.ID, UserID: standard.ID, Role: domain.RoleViewer})).To(Succeed())

			// When
			Expect(svc.Delete(ctx, admin, standard.ID)).To(Succeed())

			// Then
			_, err := mem.GetUser(ctx, standard.ID)
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
			Expect(publisher.events).To(HaveLen(1))
			deleted := publisher.events[0].(*events.UserDeletedEvent)
			Expect(deleted.UserID).To(Equal(standard.ID))
			Expect(deleted.DeletedBy).To(Equal(admin.ID))
		})

		It("refuses to delete the caller's own account", func() {
			err := svc.Delete(ctx, admin, admin.ID)
			Expect(err).To(HaveOccurred())
			Expect(publisher.events).To(BeEmpty())
		})

		It("reports a missing user", func() {
			err := svc.Delete(ctx, admin, "404")
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})

		It("wraps gateway failures with their cause", func() {
			mem.FailOn(gatewaytest.OpDeleteUser, errors.New("db down"))

			err := svc.Delete(ctx, admin, standard.ID)

			Expect(errors.Is(err, internal.ErrGatewayFailure)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("db down"))
		})
	})

	Describe("Projects", func() {
		It("lists assignments with project names and skips orphans", func() {
			// Given one live assignment and one dangling one
			p := &domain.Project{Name: "Finance"}
			Expect(mem.CreateProject(ctx, p)).To(Succeed())
			Expect(mem.CreateProjectAssignment(ctx, &domain.Assignment{ProjectID: p.ID, UserID: standard.ID, Role: domain.RoleEditor})).To(Succeed())
			mem.InsertAssignment(domain.Assignment{ProjectID: 999, UserID: standard.ID, Role: domain.RoleAdmin})

			// When
			projects, err := svc.Projects(ctx, admin, standard.ID)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(projects).To(HaveLen(1))
			Expect(projects[0].ProjectName).To(Equal("Finance"))
			Expect(projects[0].Role).To(Equal(domain.RoleEditor))
		})
	})
})

var _ = Describe("Handler", func() {
	It("serves the user list to admins", func() {
		// Given
		ctx := context.Background()
		mem := gatewaytest.NewMemory()
		a := &domain.User{Email: "admin@example.com", Name: "Admin", Role: identity.RoleAdmin}
		Expect(mem.CreateUser(ctx, a)).To(Succeed())
		h := user.NewHandler(user.NewService(mem, nil, bcrypt.MinCost, logger.Discard()), logger.Discard())

		router := chi.NewRouter()
		router.Get("/users", h.ListUsers)

		// When
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req = req.WithContext(internal.ContextWithCaller(req.Context(), a.Caller()))
		router.ServeHTTP(rec, req)

		// Then
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("admin@example.com"))
		Expect(rec.Body.String()).NotTo(ContainSubstring("password"))
	})

	It("returns 201 on create and 404 on an unknown id", func() {
		ctx := context.Background()
		mem := gatewaytest.NewMemory()
		a := &domain.User{Email: "admin@example.com", Name: "Admin", Role: identity.RoleAdmin}
		Expect(mem.CreateUser(ctx, a)).To(Succeed())
		h := user.NewHandler(user.NewService(mem, nil, bcrypt.MinCost, logger.Discard()), logger.Discard())

		router := chi.NewRouter()
		router.Post("/users", h.CreateUser)
		router.Get("/users/{id}", h.GetUser)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/users",
			strings.NewReader(`{"email":"new@example.com","name":"New","password":"password1","role":"user"}`))
		req = req.WithContext(internal.ContextWithCaller(req.Context(), a.Caller()))
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusCreated))

		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/users/12345", nil)
		req = req.WithContext(internal.ContextWithCaller(req.Context(), a.Caller()))
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})
})
