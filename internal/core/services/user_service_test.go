package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/stashpal/stashpal_backend/internal/apperrors"
	portssvc "github.com/stashpal/stashpal_backend/internal/core/ports/services"
	"github.com/stashpal/stashpal_backend/internal/core/services"
	"github.com/stashpal/stashpal_backend/internal/dto"
	"github.com/stashpal/stashpal_backend/internal/platform/config"
	"github.com/stashpal/stashpal_backend/internal/repositories/database/memory"
	"github.com/stashpal/stashpal_backend/internal/utils"
)

type UserServiceTestSuite struct {
	suite.Suite
	svc portssvc.UserSvcFacade
	cfg *config.Config
}

func (s *UserServiceTestSuite) SetupTest() {
	store := memory.NewStore()
	s.cfg = &config.Config{
		DefaultCurrency:       "USD",
		JWTSecret:             "test-secret-key",
		JWTExpiryDuration:     time.Hour,
		JWTIssuer:             "stashpal-test",
		SecondFactorThreshold: decimal.NewFromInt(1000),
	}
	s.svc = services.NewUserService(memory.NewRepositoryProvider(store).UserRepo, s.cfg)
}

func (s *UserServiceTestSuite) TestRegister_Success() {
	user, err := s.svc.Register(context.Background(), dto.RegisterUserRequest{
		Name:     "Ada",
		Email:    "  Ada@Example.COM ",
		Password: "supersecret",
	})
	s.Require().NoError(err)
	s.NotEmpty(user.UserID)
	s.Equal("ada@example.com", user.Email)
	s.NotEqual("supersecret", user.PasswordHash)
	s.Equal(user.UserID, user.CreatedBy)
}

func (s *UserServiceTestSuite) TestRegister_DuplicateEmail() {
	req := dto.RegisterUserRequest{Name: "Ada", Email: "ada@example.com", Password: "supersecret"}
	_, err := s.svc.Register(context.Background(), req)
	s.Require().NoError(err)

	// Same address with different casing is still a duplicate.
	req.Email = "ADA@example.com"
	_, err = s.svc.Register(context.Background(), req)
	s.ErrorIs(err, apperrors.ErrDuplicate)
}

func (s *UserServiceTestSuite) TestLogin_IssuesValidToken() {
	ctx := context.Background()
	user, err := s.svc.Register(ctx, dto.RegisterUserRequest{
		Name: "Ada", Email: "ada@example.com", Password: "supersecret",
	})
	s.Require().NoError(err)

	resp, err := s.svc.Login(ctx, dto.LoginRequest{Email: "ada@example.com", Password: "supersecret"})
	s.Require().NoError(err)
	s.Require().NotEmpty(resp.Token)
	s.Equal(user.UserID, resp.User.UserID)

	claims, err := utils.ParseAndValidateJWT(resp.Token, s.cfg.JWTSecret)
	s.Require().NoError(err)
	s.Equal(user.UserID, claims.Subject)
	s.Equal(s.cfg.JWTIssuer, claims.Issuer)
}

func (s *UserServiceTestSuite) TestLogin_BadCredentials() {
	ctx := context.Background()
	_, err := s.svc.Register(ctx, dto.RegisterUserRequest{
		Name: "Ada", Email: "ada@example.com", Password: "supersecret",
	})
	s.Require().NoError(err)

	_, err = s.svc.Login(ctx, dto.LoginRequest{Email: "ada@example.com", Password: "wrongpass"})
	s.ErrorIs(err, apperrors.ErrForbidden)

	_, err = s.svc.Login(ctx, dto.LoginRequest{Email: "nobody@example.com", Password: "supersecret"})
	s.ErrorIs(err, apperrors.ErrForbidden)
}

func TestUserServiceTestSuite(t *testing.T) {
	suite.Run(t, new(UserServiceTestSuite))
}
