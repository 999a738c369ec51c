package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/auth"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/events"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/frahmantamala/datashare/internal/gateway/gatewaytest"
	"github.com/frahmantamala/datashare/internal/ingest"
	"github.com/frahmantamala/datashare/internal/project"
	"github.com/frahmantamala/datashare/internal/store"
	"github.com/frahmantamala/datashare/internal/transport/openapi"
	"github.com/frahmantamala/datashare/internal/transport/rest"
	"github.com/frahmantamala/datashare/internal/user"
	"github.com/frahmantamala/datashare/pkg/logger"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const specPath = "../../../api/openapi.yml"

func TestRest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rest Suite")
}

var _ = Describe("RegisterAllRoutes", func() {
	var router *chi.Mux

	BeforeEach(func() {
		ctx := context.Background()
		lg := logger.Discard()
		mem := gatewaytest.NewMemory()

		hash, err := auth.HashPassword("password123", 4)
		Expect(err).NotTo(HaveOccurred())
		for _, u := range []domain.User{
			{Email: "admin@example.com", Name: "Admin", PasswordHash: hash, Role: identity.RoleAdmin},
			{Email: "user@example.com", Name: "User", PasswordHash: hash, Role: identity.RoleUser},
		} {
			u := u
			Expect(mem.CreateUser(ctx, &u)).To(Succeed())
		}

		bus := events.NewEventBus(lg)
		registry, err := store.NewRegistry(mem, lg, 16, store.WithPublisher(bus))
		Expect(err).NotTo(HaveOccurred())
		registry.Subscribe(bus)

		tokens := auth.NewJWTTokenGenerator("router-access-secret-0123456789abcdef", "router-refresh-secret-0123456789abcdef", time.Minute, time.Hour)
		authHandler := auth.NewHandler(auth.NewService(mem, tokens, lg), registry, lg)
		userHandler := user.NewHandler(user.NewService(mem, bus, 4, lg), lg)
		projectHandler := project.NewHandler(project.NewService(mem, ingest.NewPipeline(lg), internal.ProjectsConfig{}, lg), 1<<20, lg)

		doc, err := openapi.Load(specPath)
		Expect(err).NotTo(HaveOccurred())
		validator, err := openapi.NewValidator(doc, lg)
		Expect(err).NotTo(HaveOccurred())

		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, nil, specPath, validator, authHandler, userHandler, projectHandler, lg)
	})

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	login := func(email string) string {
		rec := do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"`+email+`","password":"password123"}`)
		Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())
		var tokens auth.AuthTokens
		Expect(json.Unmarshal(rec.Body.Bytes(), &tokens)).To(Succeed())
		return tokens.AccessToken
	}

	It("answers the liveness probe", func() {
		Expect(do(http.MethodGet, "/api/v1/ping", "", "").Code).To(Equal(http.StatusOK))
	})

	It("serves the contract", func() {
		rec := do(http.MethodGet, "/openapi.yml", "", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("openapi: 3.0.3"))
	})

	It("requires a token for project routes", func() {
		Expect(do(http.MethodGet, "/api/v1/projects", "", "").Code).To(Equal(http.StatusUnauthorized))
	})

	It("rejects requests that break the contract before they reach a handler", func() {
		// Given a login body without a password
		rec := do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"admin@example.com"}`)

		// Then the validator answers 400
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("lets an admin create a project and list it", func() {
		token := login("admin@example.com")

		rec := do(http.MethodPost, "/api/v1/projects", token, `{"name":"Sales","tags":["q1"]}`)
		Expect(rec.Code).To(Equal(http.StatusCreated), rec.Body.String())

		rec = do(http.MethodGet, "/api/v1/projects", token, "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		var list project.ProjectList
		Expect(json.Unmarshal(rec.Body.Bytes(), &list)).To(Succeed())
		Expect(list.Projects).To(HaveLen(1))
		Expect(list.Projects[0].Name).To(Equal("Sales"))
	})

	It("keeps user administration for admins", func() {
		Expect(do(http.MethodGet, "/api/v1/users", login("user@example.com"), "").Code).To(Equal(http.StatusForbidden))
		Expect(do(http.MethodGet, "/api/v1/users", login("admin@example.com"), "").Code).To(Equal(http.StatusOK))
	})

	It("routes summary ahead of the project id", func() {
		rec := do(http.MethodGet, "/api/v1/projects/summary", login("user@example.com"), "")
		Expect(rec.Code).To(Equal(http.StatusOK))
	})
})
