package access_test

import (
	"testing"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/access"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/identity"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAccess(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Access Suite")
}

func projectIDs(ps []domain.Project) []int64 {
	ids := make([]int64, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

var _ = Describe("AccessibleProjects", func() {
	var projects []domain.Project

	BeforeEach(func() {
		projects = []domain.Project{{ID: 3, Name: "c"}, {ID: 1, Name: "a"}, {ID: 2, Name: "b"}}
	})

	It("returns every project to an admin regardless of assignments", func() {
		admin := identity.NewCaller(99, "root@example.com", identity.RoleAdmin)

		Expect(access.AccessibleProjects(admin, projects, nil)).To(Equal(projects))
		Expect(access.AccessibleProjects(admin, projects, []domain.Assignment{
			{ProjectID: 1, UserID: "5", Role: domain.RoleViewer},
		})).To(Equal(projects))
	})

	It("returns only assigned projects to a standard user, in input order", func() {
		// Given assignments for user 5 on projects 2 and 3 and one for another user
		caller := identity.NewCaller(5, "u@example.com", identity.RoleUser)
		assignments := []domain.Assignment{
			{ProjectID: 2, UserID: "5", Role: domain.RoleViewer},
			{ProjectID: 1, UserID: "6", Role: domain.RoleAdmin},
			{ProjectID: 3, UserID: "5", Role: domain.RoleEditor},
		}

		// When
		got := access.AccessibleProjects(caller, projects, assignments)

		// Then
		Expect(projectIDs(got)).To(Equal([]int64{3, 2}))
		Expect(access.AccessibleProjects(caller, projects, assignments)).To(Equal(got))
	})

	It("returns an empty result when there are no matching assignments", func() {
		caller := identity.NewCaller("5", "", identity.RoleUser)
		Expect(access.AccessibleProjects(caller, projects, nil)).To(BeEmpty())
		Expect(access.AccessibleProjects(caller, projects, []domain.Assignment{{ProjectID: 1, UserID: "8"}})).To(BeEmpty())
	})

	It("treats numeric and string ids as the same user", func() {
		assignNumeric := []domain.Assignment{{ProjectID: 1, UserID: identity.Normalize(7), Role: domain.RoleViewer}}
		assignString := []domain.Assignment{{ProjectID: 1, UserID: identity.Normalize("7"), Role: domain.RoleViewer}}

		fromString := access.AccessibleProjects(identity.NewCaller("7", "", identity.RoleUser), projects, assignNumeric)
		fromNumber := access.AccessibleProjects(identity.NewCaller(7, "", identity.RoleUser), projects, assignString)

		Expect(fromString).To(Equal(fromNumber))
		Expect(projectIDs(fromString)).To(Equal([]int64{1}))
	})

	It("ignores assignments that point at missing projects", func() {
		caller := identity.NewCaller(5, "", identity.RoleUser)
		assignments := []domain.Assignment{
			{ProjectID: 404, UserID: "5", Role: domain.RoleAdmin},
			{ProjectID: 1, UserID: "5", Role: domain.RoleViewer},
		}

		Expect(projectIDs(access.AccessibleProjects(caller, projects, assignments))).To(Equal([]int64{1}))
	})

	It("returns nothing for an anonymous caller", func() {
		Expect(access.AccessibleProjects(identity.Caller{}, projects, nil)).To(BeEmpty())
	})
})

var _ = Describe("EffectiveRole", func() {
	project := domain.Project{ID: 1}

	It("grants admin to a global admin without any assignment", func() {
		role, err := access.EffectiveRole(identity.NewCaller(1, "", identity.RoleAdmin), project, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(role).To(Equal(domain.RoleAdmin))
	})

	It("picks the most permissive of duplicate grants", func() {
		caller := identity.NewCaller(5, "", identity.RoleUser)
		assignments := []domain.Assignment{
			{ProjectID: 1, UserID: "5", Role: domain.RoleViewer},
			{ProjectID: 1, UserID: "5", Role: domain.RoleEditor},
			{ProjectID: 2, UserID: "5", Role: domain.RoleAdmin},
		}

		role, err := access.EffectiveRole(caller, project, assignments)
		Expect(err).NotTo(HaveOccurred())
		Expect(role).To(Equal(domain.RoleEditor))
	})

	It("fails with not-a-member for a caller without a grant", func() {
		caller := identity.NewCaller(5, "", identity.RoleUser)
		_, err := access.EffectiveRole(caller, project, []domain.Assignment{{ProjectID: 2, UserID: "5", Role: domain.RoleAdmin}})
		Expect(err).To(MatchError(internal.ErrNotAMember))
	})

	It("fails with not-authenticated for an anonymous caller", func() {
		_, err := access.EffectiveRole(identity.Caller{}, project, nil)
		Expect(err).To(MatchError(internal.ErrNotAuthenticated))
	})
})

var _ = Describe("mutation rights", func() {
	It("lets editors and admins curate", func() {
		Expect(access.CanCurate(domain.RoleViewer)).To(BeFalse())
		Expect(access.CanCurate(domain.RoleEditor)).To(BeTrue())
		Expect(access.CanCurate(domain.RoleAdmin)).To(BeTrue())
	})

	It("reserves management to global admins", func() {
		Expect(access.CanManage(identity.NewCaller(1, "", identity.RoleAdmin))).To(BeTrue())
		Expect(access.CanManage(identity.NewCaller(1, "", identity.RoleUser))).To(BeFalse())
	})
})
