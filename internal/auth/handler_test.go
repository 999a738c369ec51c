package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/gateway/gatewaytest"
	"github.com/frahmantamala/datashare/internal/store"
	"github.com/frahmantamala/datashare/pkg/logger"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Handler", func() {
	var (
		handler  *Handler
		registry *store.Registry
		service  *Service
	)

	ginkgo.BeforeEach(func() {
		repo := newMockUserRepository()
		tokenGen := NewJWTTokenGenerator("test-access-secret-0123456789abcdef", "test-refresh-secret-0123456789abcdef", time.Minute, time.Hour)
		service = NewService(repo, tokenGen, logger.Discard())

		var err error
		registry, err = store.NewRegistry(gatewaytest.NewMemory(), logger.Discard(), 8)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		handler = NewHandler(service, registry, logger.Discard())
	})

	login := func(email string) AuthTokens {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"`+email+`","password":"correct_password"}`))
		handler.Login(rec, req)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

		var tokens AuthTokens
		gomega.Expect(json.NewDecoder(rec.Body).Decode(&tokens)).To(gomega.Succeed())
		return tokens
	}

	ginkgo.It("rejects a bad password with 401 and the error envelope", func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"user@example.com","password":"nope"}`))

		handler.Login(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(string(internal.ErrCodeInvalidCredentials)))
	})

	ginkgo.It("rejects malformed JSON with 400", func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{`))

		handler.Login(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
	})

	ginkgo.It("attaches the caller and its session store in the middleware", func() {
		// Given
		tokens := login("admin@example.com")

		var gotCaller string
		var gotStore bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCaller = internal.CallerFromContext(r.Context()).ID
			_, gotStore = store.FromContext(r.Context())
		})

		// When
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		handler.AuthMiddleware(next).ServeHTTP(rec, req)

		// Then
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(gotCaller).To(gomega.Equal("2"))
		gomega.Expect(gotStore).To(gomega.BeTrue())
		gomega.Expect(registry.Len()).To(gomega.Equal(1))
	})

	ginkgo.It("rejects requests without a bearer token", func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)

		handler.AuthMiddleware(http.NotFoundHandler()).ServeHTTP(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
	})

	ginkgo.It("drops the session on logout", func() {
		// Given an established session
		tokens := login("user@example.com")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		handler.AuthMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(httptest.NewRecorder(), req)
		gomega.Expect(registry.Len()).To(gomega.Equal(1))

		// When
		rec := httptest.NewRecorder()
		out := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		out.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		handler.Logout(rec, out)

		// Then
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(registry.Len()).To(gomega.Equal(0))
	})
})
