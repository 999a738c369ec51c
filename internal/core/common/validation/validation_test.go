package validation_test

import (
	"testing"

	errors "github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/common/validation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestValidation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Validation Suite")
}

func fieldCodes(err *errors.AppError) []string {
	details, ok := err.Details.(errors.ValidationErrors)
	Expect(ok).To(BeTrue())
	codes := make([]string, 0, len(details.Errors))
	for _, e := range details.Errors {
		codes = append(codes, e.Code)
	}
	return codes
}

var _ = Describe("ValidationBuilder", func() {
	It("collects every failing field", func() {
		// Given a builder with two invalid fields
		v := validation.NewValidator()
		v.Field("email", "not-an-email").Required().Email()
		v.Field("name", "").Required()

		// When
		err := v.Validate()

		// Then both failures are reported
		Expect(err).NotTo(BeNil())
		Expect(err.Code).To(Equal(errors.ErrCodeValidationFailed))
		Expect(fieldCodes(err)).To(ConsistOf(string(errors.ErrCodeInvalidEmail), string(errors.ErrCodeValidationFailed)))
	})

	It("passes valid input", func() {
		Expect(validation.ValidateEmail("ana@example.com")).To(BeNil())
		Expect(validation.ValidatePassword("correct horse")).To(BeNil())
		Expect(validation.ValidateProjectName("Sales 2024")).To(BeNil())
	})

	It("rejects display-name email forms", func() {
		Expect(validation.ValidateEmail("Ana <ana@example.com>")).NotTo(BeNil())
	})

	It("accepts project roles case-insensitively", func() {
		Expect(validation.ValidateProjectRole("Editor")).To(BeNil())

		err := validation.ValidateProjectRole("owner")
		Expect(err).NotTo(BeNil())
		Expect(fieldCodes(err)).To(ConsistOf(string(errors.ErrCodeInvalidRole)))
	})

	It("enforces password length", func() {
		Expect(validation.ValidatePassword("short")).NotTo(BeNil())
	})
})
