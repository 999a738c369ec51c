package project_test

import (
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/project"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DTOs", func() {
	current := domain.Project{ID: 7, Name: "Sales", DataSource: domain.DataSourceCSV}

	It("takes a known data source from an update", func() {
		source := " API "
		out := project.UpdateProjectDTO{DataSource: &source}.Apply(current)
		Expect(out.DataSource).To(Equal(domain.DataSourceAPI))
	})

	It("keeps the current data source when an update names an unknown one", func() {
		source := "ftp"
		out := project.UpdateProjectDTO{DataSource: &source}.Apply(current)
		Expect(out.DataSource).To(Equal(domain.DataSourceCSV))
		Expect(out.Name).To(Equal("Sales"))
	})

	It("defaults an unknown create data source to excel", func() {
		out := project.CreateProjectDTO{Name: "Sales", DataSource: "ftp"}.ToDomain()
		Expect(out.DataSource).To(Equal(domain.DataSourceExcel))
	})
})
