package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/frahmantamala/datashare/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

// Mock UserRepository for testing
type mockUserRepository struct {
	users         map[string]domain.User // email -> user
	returnError   bool
	errorToReturn error
}

func newMockUserRepository() *mockUserRepository {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct_password"), bcrypt.MinCost)

	return &mockUserRepository{
		users: map[string]domain.User{
			"user@example.com":  {ID: 1, Email: "user@example.com", PasswordHash: string(hashedPassword), Role: identity.RoleUser},
			"admin@example.com": {ID: 2, Email: "admin@example.com", PasswordHash: string(hashedPassword), Role: identity.RoleAdmin},
		},
	}
}

func (m *mockUserRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	if u, ok := m.users[email]; ok {
		return &u, nil
	}
	return nil, internal.ErrUserNotFound
}

func (m *mockUserRepository) GetUser(_ context.Context, id string) (*domain.User, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	for _, u := range m.users {
		if identity.Same(u.ID, id) {
			u := u
			return &u, nil
		}
	}
	return nil, internal.ErrUserNotFound
}

func (m *mockUserRepository) setError(err error) {
	m.returnError = true
	m.errorToReturn = err
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		service       *Service
		mockRepo      *mockUserRepository
		tokenGen      *JWTTokenGenerator
		accessSecret  = "test-access-secret-0123456789abcdef"
		refreshSecret = "test-refresh-secret-0123456789abcdef"
		accessTTL     = 15 * time.Minute
		refreshTTL    = 24 * time.Hour
		ctx           = context.Background()
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockUserRepository()
		tokenGen = NewJWTTokenGenerator(accessSecret, refreshSecret, accessTTL, refreshTTL)
		service = NewService(mockRepo, tokenGen, logger.Discard())
	})

	ginkgo.Describe("Authenticate", func() {
		ginkgo.Context("when credentials are valid", func() {
			ginkgo.It("should return access and refresh tokens", func() {
				// Given
				dto := LoginDTO{Email: "user@example.com", Password: "correct_password"}

				// When
				tokens, err := service.Authenticate(ctx, dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.RefreshToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.Equal(tokens.RefreshToken))
				gomega.Expect(tokens.TokenType).To(gomega.Equal("Bearer"))
				gomega.Expect(tokens.ExpiresIn).To(gomega.Equal(int64(900)))
			})

			ginkgo.It("should normalize the email before lookup", func() {
				// Given
				dto := LoginDTO{Email: "  Admin@Example.com ", Password: "correct_password"}

				// When
				tokens, err := service.Authenticate(ctx, dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				claims, err := service.ValidateAccessToken(tokens.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal("2"))
				gomega.Expect(claims.Role).To(gomega.Equal("admin"))
			})
		})

		ginkgo.Context("when credentials are invalid", func() {
			ginkgo.It("should reject a wrong password", func() {
				_, err := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "wrong"})
				gomega.Expect(errors.Is(err, internal.ErrInvalidCredentials)).To(gomega.BeTrue())
			})

			ginkgo.It("should reject an unknown email the same way", func() {
				_, err := service.Authenticate(ctx, LoginDTO{Email: "ghost@example.com", Password: "correct_password"})
				gomega.Expect(errors.Is(err, internal.ErrInvalidCredentials)).To(gomega.BeTrue())
			})

			ginkgo.It("should fail validation for missing fields", func() {
				_, err := service.Authenticate(ctx, LoginDTO{Email: "", Password: ""})
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeValidationFailed))
			})

			ginkgo.It("should surface repository failures", func() {
				// Given
				mockRepo.setError(errors.New("connection refused"))

				// When
				_, err := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "correct_password"})

				// Then
				gomega.Expect(err).To(gomega.MatchError("connection refused"))
			})
		})
	})

	ginkgo.Describe("RefreshTokens", func() {
		ginkgo.It("should issue a new pair from a refresh token", func() {
			// Given
			tokens, err := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			refreshed, err := service.RefreshTokens(ctx, tokens.RefreshToken)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			claims, err := service.ValidateAccessToken(refreshed.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.UserID).To(gomega.Equal("1"))
		})

		ginkgo.It("should reject an access token used as a refresh token", func() {
			tokens, _ := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "correct_password"})

			_, err := service.RefreshTokens(ctx, tokens.AccessToken)

			gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
		})

		ginkgo.It("should reject a refresh token for a deleted user", func() {
			// Given
			tokens, _ := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "correct_password"})
			delete(mockRepo.users, "user@example.com")

			// When
			_, err := service.RefreshTokens(ctx, tokens.RefreshToken)

			// Then
			gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("ValidateAccessToken", func() {
		ginkgo.It("should reject a refresh token", func() {
			tokens, _ := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "correct_password"})

			_, err := service.ValidateAccessToken(tokens.RefreshToken)

			gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
		})

		ginkgo.It("should report expiry distinctly", func() {
			// Given a token that expired a minute ago
			claims := &Claims{
				UserID:    "1",
				TokenType: TokenTypeAccess,
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
				},
			}
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(accessSecret))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			_, err = service.ValidateAccessToken(signed)

			// Then
			gomega.Expect(errors.Is(err, internal.ErrTokenExpired)).To(gomega.BeTrue())
		})

		ginkgo.It("should reject a token signed with another secret", func() {
			other := NewJWTTokenGenerator("some-other-secret-0123456789abcdefgh", refreshSecret, accessTTL, refreshTTL)
			signed, _ := other.GenerateAccessToken(domain.User{ID: 1})

			_, err := service.ValidateAccessToken(signed)

			gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
		})

		ginkgo.It("should reject garbage", func() {
			_, err := service.ValidateAccessToken("not.a.token")
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("ResolveCaller", func() {
		ginkgo.It("should take the role from the stored record", func() {
			// Given a token issued while user 1 was a standard user
			tokens, _ := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "correct_password"})
			claims, _ := service.ValidateAccessToken(tokens.AccessToken)

			// And the user has since been promoted
			u := mockRepo.users["user@example.com"]
			u.Role = identity.RoleAdmin
			mockRepo.users["user@example.com"] = u

			// When
			caller, err := service.ResolveCaller(ctx, claims)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(caller.ID).To(gomega.Equal("1"))
			gomega.Expect(caller.IsAdmin()).To(gomega.BeTrue())
		})

		ginkgo.It("should fail for a user that no longer exists", func() {
			_, err := service.ResolveCaller(ctx, &Claims{UserID: "99"})
			gomega.Expect(errors.Is(err, internal.ErrNotAuthenticated)).To(gomega.BeTrue())
		})

		ginkgo.It("should fail for empty claims", func() {
			_, err := service.ResolveCaller(ctx, &Claims{})
			gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("HashPassword", func() {
		ginkgo.It("should produce a verifiable hash", func() {
			hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass"))).To(gomega.Succeed())
		})
	})
})
