package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/frahmantamala/datashare/internal/core/domain"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDomain(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Domain Suite")
}

var _ = Describe("Role", func() {
	It("orders viewer < editor < admin", func() {
		Expect(domain.RoleAdmin.AtLeast(domain.RoleEditor)).To(BeTrue())
		Expect(domain.RoleEditor.AtLeast(domain.RoleViewer)).To(BeTrue())
		Expect(domain.RoleViewer.AtLeast(domain.RoleEditor)).To(BeFalse())
	})

	It("picks the most permissive role", func() {
		Expect(domain.MostPermissive(domain.RoleViewer, domain.RoleAdmin, domain.RoleEditor)).To(Equal(domain.RoleAdmin))
		Expect(domain.MostPermissive()).To(Equal(domain.RoleNone))
	})

	It("round-trips through JSON as a lowercase name", func() {
		b, err := json.Marshal(struct {
			Role domain.Role `json:"role"`
		}{domain.RoleEditor})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(Equal(`{"role":"editor"}`))

		var out struct {
			Role domain.Role `json:"role"`
		}
		Expect(json.Unmarshal([]byte(`{"role":"Viewer"}`), &out)).To(Succeed())
		Expect(out.Role).To(Equal(domain.RoleViewer))
	})
})

var _ = Describe("Project columns", func() {
	It("expands and restores column state with selection order", func() {
		p := domain.Project{
			Columns:         []string{"id", "name", "region", "revenue"},
			SelectedColumns: []string{"revenue", "id"},
		}

		cols := domain.ColumnsOf(p)
		Expect(cols).To(HaveLen(4))
		Expect(cols[3]).To(Equal(domain.Column{Name: "revenue", Position: 3, Selected: true, SelectedPosition: 0}))
		Expect(cols[1].Selected).To(BeFalse())

		// reverse to prove ordering comes from positions, not input order
		reversed := []domain.Column{cols[3], cols[2], cols[1], cols[0]}
		restored := domain.Project{}.WithColumns(reversed)
		Expect(restored.Columns).To(Equal(p.Columns))
		Expect(restored.SelectedColumns).To(Equal(p.SelectedColumns))
	})

	It("clones without sharing slices", func() {
		p := domain.Project{Columns: []string{"a"}, SelectedColumns: []string{"a"}}
		cp := p.Clone()
		cp.Columns[0] = "z"
		Expect(p.Columns[0]).To(Equal("a"))
	})
})
