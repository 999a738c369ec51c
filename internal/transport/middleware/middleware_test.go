package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/frahmantamala/datashare/pkg/logger"
	chiMiddleware "github.com/go-chi/chi/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

func decodeError(rec *httptest.ResponseRecorder) map[string]interface{} {
	var resp map[string]map[string]interface{}
	Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
	return resp["error"]
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

var _ = Describe("RequireAdmin", func() {
	serveAs := func(caller identity.Caller) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		if caller.Authenticated() {
			req = req.WithContext(internal.ContextWithCaller(req.Context(), caller))
		}
		rec := httptest.NewRecorder()
		RequireAdmin(logger.Discard())(okHandler).ServeHTTP(rec, req)
		return rec
	}

	It("lets admins through", func() {
		rec := serveAs(identity.NewCaller(1, "admin@example.com", identity.RoleAdmin))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("forbids standard users and points them at the project list", func() {
		// Given a signed-in standard user
		rec := serveAs(identity.NewCaller(2, "user@example.com", identity.RoleUser))

		// Then the response is 403 with an allowed view
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		body := decodeError(rec)
		Expect(body["code"]).To(Equal("NOT_AUTHORIZED"))
		Expect(body["details"]).To(HaveKeyWithValue("allowed_view", "/api/v1/projects"))
	})

	It("rejects anonymous requests", func() {
		rec := serveAs(identity.Caller{})
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})
})

var _ = Describe("RequestID", func() {
	It("keeps an inbound trace id and exposes it to chi", func() {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = chiMiddleware.GetReqID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceHeader, "trace-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(seen).To(Equal("trace-123"))
		Expect(rec.Header().Get(TraceHeader)).To(Equal("trace-123"))
	})

	It("mints one when none is sent", func() {
		rec := httptest.NewRecorder()
		RequestID(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(rec.Header().Get(TraceHeader)).To(HaveLen(36))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("turns a panic into a 500 envelope", func() {
		h := RecoveryMiddleware(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(decodeError(rec)["code"]).To(Equal("INTERNAL_ERROR"))
	})
})

var _ = Describe("LoggingMiddleware", func() {
	It("masks credentials in logged bodies", func() {
		var buf bytes.Buffer
		lg := logger.New(&buf, "debug", "json")

		h := LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"access_token":"abc"}`))
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"a@example.com","password":"hunter22"}`))
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(buf.String()).NotTo(ContainSubstring("hunter22"))
		Expect(buf.String()).NotTo(ContainSubstring(`abc`))
		Expect(buf.String()).To(ContainSubstring("a@example.com"))
	})

	It("logs upload sizes instead of file contents", func() {
		var buf bytes.Buffer
		h := LoggingMiddleware(logger.New(&buf, "info", "json"))(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/1/upload", strings.NewReader("id,secret_value\n1,x\n"))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(buf.String()).To(ContainSubstring("[UPLOAD"))
		Expect(buf.String()).NotTo(ContainSubstring("secret_value"))
	})

	It("filters nested JSON keys", func() {
		out := filterSensitiveBody([]byte(`{"user":{"password_hash":"x","name":"n"}}`))
		Expect(out).To(ContainSubstring(`"password_hash":"[FILTERED]"`))
		Expect(out).To(ContainSubstring(`"name":"n"`))
	})
})
