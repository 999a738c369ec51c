package project_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/frahmantamala/datashare/internal/project"
	"github.com/frahmantamala/datashare/internal/store"
	"github.com/frahmantamala/datashare/pkg/logger"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func multipartBody(filename, content string) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write([]byte(content))
	Expect(err).NotTo(HaveOccurred())
	Expect(mw.Close()).To(Succeed())
	return body, mw.FormDataContentType()
}

var _ = Describe("Handler", func() {
	var (
		f      *fixture
		router chi.Router
	)

	serve := func(caller identity.Caller, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
		if body == nil {
			body = &bytes.Buffer{}
		}
		req := httptest.NewRequest(method, path, body)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		ctx := internal.ContextWithCaller(req.Context(), caller)
		ctx = store.NewContext(ctx, f.session(caller))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req.WithContext(ctx))
		return rec
	}

	BeforeEach(func() {
		f = newFixture(internal.ProjectsConfig{PageSize: 100, MaxPageSize: 1000})
		h := project.NewHandler(f.svc, 512, logger.Discard())

		r := chi.NewRouter()
		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.CreateProject)
		r.Get("/projects/summary", h.GetSummary)
		r.Get("/projects/{id}", h.GetProject)
		r.Patch("/projects/{id}", h.UpdateProject)
		r.Post("/projects/{id}/upload", h.UploadData)
		r.Put("/projects/{id}/columns", h.SelectColumns)
		r.Get("/projects/{id}/rows", h.GetRows)
		router = r
	})

	It("lists projects for the caller in context", func() {
		rec := serve(f.viewer, http.MethodGet, "/projects", nil, "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var list project.ProjectList
		Expect(json.Unmarshal(rec.Body.Bytes(), &list)).To(Succeed())
		Expect(list.Projects).To(HaveLen(1))
	})

	It("answers 401 when no session is attached", func() {
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("redirects a forbidden update to an allowed view", func() {
		rec := serve(f.viewer, http.MethodPatch, "/projects/"+itoa(f.sales.ID), bytes.NewBufferString(`{"name":"x"}`), "application/json")

		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(rec.Body.String()).To(ContainSubstring(`"allowed_view":"/api/v1/projects"`))
	})

	It("rejects a non-numeric id", func() {
		rec := serve(f.admin, http.MethodGet, "/projects/abc", nil, "")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("ingests a multipart CSV upload", func() {
		body, ct := multipartBody("sales.csv", salesCSV)

		rec := serve(f.editor, http.MethodPost, "/projects/"+itoa(f.sales.ID)+"/upload", body, ct)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"rows":3`))
	})

	It("rejects an unsupported file type as a malformed upload", func() {
		body, ct := multipartBody("sales.pdf", "%PDF")

		rec := serve(f.editor, http.MethodPost, "/projects/"+itoa(f.sales.ID)+"/upload", body, ct)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring(string(internal.ErrCodeMalformedUpload)))
	})

	It("rejects an upload over the size limit", func() {
		body, ct := multipartBody("big.csv", "a,b\n"+strings.Repeat("1,2\n", 400))

		rec := serve(f.editor, http.MethodPost, "/projects/"+itoa(f.sales.ID)+"/upload", body, ct)

		Expect(rec.Code).To(Equal(http.StatusRequestEntityTooLarge))
	})

	It("reports the missing column count on a short selection", func() {
		f.curate()

		rec := serve(f.editor, http.MethodPut, "/projects/"+itoa(f.sales.ID)+"/columns", bytes.NewBufferString(`{"columns":["id","name","id"]}`), "application/json")

		Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
		Expect(rec.Body.String()).To(ContainSubstring(`"needed":2`))
	})

	It("bounds the row page by the limit query", func() {
		f.curate()

		rec := serve(f.viewer, http.MethodGet, "/projects/"+itoa(f.sales.ID)+"/rows?limit=1", nil, "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var page project.RowPage
		Expect(json.Unmarshal(rec.Body.Bytes(), &page)).To(Succeed())
		Expect(page.Rows).To(HaveLen(1))
		Expect(page.Columns).To(HaveLen(4))
	})
})
