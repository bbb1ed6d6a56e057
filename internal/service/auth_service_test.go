package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mansoorceksport/recgetup/internal/config"
	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc        *AuthService
	tokens     *TokenService
	users      *memUserRepo
	refresh    *memRefreshTokenRepo
	mailer     *recordingMailer
	dispatcher *recordingDispatcher
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:             "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		RememberMeExpiry:   30 * 24 * time.Hour,
		ActivationExpiry:   72 * time.Hour,
		PasswordResetTTL:   time.Hour,
	}
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		users:      newMemUserRepo(),
		refresh:    newMemRefreshTokenRepo(),
		mailer:     &recordingMailer{},
		dispatcher: &recordingDispatcher{},
	}
	jwtCfg := testJWTConfig()
	f.tokens = NewTokenService(jwtCfg, f.refresh, f.users, domain.SystemClock{})
	f.svc = NewAuthService(f.users, f.tokens, f.mailer, f.dispatcher, jwtCfg, config.AppConfig{
		Name:        "Recgetup Music",
		BaseURL:     "http://api.local",
		FrontendURL: "http://app.local",
	})
	return f
}

func validRegistration() RegisterInput {
	return RegisterInput{
		FullName:        "Asha Devi Rao",
		Email:           " Asha@Example.com ",
		PhoneNumber:     "+919800000000",
		Password:        "s3cret-pass",
		ConfirmPassword: "s3cret-pass",
	}
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func (f *authFixture) registerAndActivate(t *testing.T) *domain.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	_, err = f.svc.Activate(context.Background(), tokenFromLink(t, f.mailer.activations[0].link))
	require.NoError(t, err)
	return user
}

func TestRegisterCreatesInactiveUser(t *testing.T) {
	f := newAuthFixture()

	user, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	assert.Equal(t, "asha@example.com", user.Email)
	assert.Equal(t, "Asha", user.FirstName)
	assert.Equal(t, "Devi Rao", user.LastName)
	assert.False(t, user.IsActive)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	assert.Equal(t, []string{domain.RoleStudent}, user.Roles)

	require.Len(t, f.mailer.activations, 1)
	assert.True(t, strings.HasPrefix(f.mailer.activations[0].link, "http://api.local/v1/auth/activate?token="))
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture()

	in := validRegistration()
	in.FullName = " "
	in.Email = "not-an-email"
	in.PhoneNumber = "12ab"
	in.Password = "short"
	in.ConfirmPassword = "different"

	_, err := f.svc.Register(context.Background(), in)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "full_name")
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "phone_number")
	assert.Contains(t, verr.Fields, "password")
	assert.Contains(t, verr.Fields, "confirm_password")

	in = validRegistration()
	in.Password, in.ConfirmPassword = "12345678901", "12345678901"
	_, err = f.svc.Register(context.Background(), in)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "password cannot be entirely numeric", verr.Fields["password"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture()
	_, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), validRegistration())
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, domain.ErrEmailTaken.Error(), verr.Fields["email"])
}

func TestRegisterSurvivesMailerFailure(t *testing.T) {
	f := newAuthFixture()
	f.mailer.err = errors.New("smtp down")

	_, err := f.svc.Register(context.Background(), validRegistration())
	assert.NoError(t, err)
}

func TestActivateSendsWelcome(t *testing.T) {
	f := newAuthFixture()
	user := f.registerAndActivate(t)

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	require.Len(t, f.dispatcher.welcomes, 1)
	assert.Equal(t, "asha@example.com", f.dispatcher.welcomes[0].Recipient.Email)

	// Second click on the same link is harmless
	_, err = f.svc.Activate(context.Background(), tokenFromLink(t, f.mailer.activations[0].link))
	require.NoError(t, err)
	assert.Len(t, f.dispatcher.welcomes, 1)
}

func TestActivateRejectsBadTokens(t *testing.T) {
	f := newAuthFixture()
	_, err := f.svc.Activate(context.Background(), "garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	// A reset token cannot activate
	token, err := f.tokens.GenerateLinkToken("user-1", domain.TokenPurposeReset, "", time.Hour)
	require.NoError(t, err)
	_, err = f.svc.Activate(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	expired, err := f.tokens.GenerateLinkToken("user-1", domain.TokenPurposeActivate, "", -time.Minute)
	require.NoError(t, err)
	_, err = f.svc.Activate(context.Background(), expired)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, LoginInput{Email: "asha@example.com", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, domain.ErrEmailNotVerified)

	_, err = f.svc.Login(ctx, LoginInput{Email: "asha@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Activate(ctx, tokenFromLink(t, f.mailer.activations[0].link))
	require.NoError(t, err)

	res, err := f.svc.Login(ctx, LoginInput{Email: "ASHA@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)

	claims, err := f.tokens.ParseAccessToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, []string{domain.RoleStudent}, claims.Roles)

	_, err = f.svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRememberMeExtendsRefreshToken(t *testing.T) {
	f := newAuthFixture()
	f.registerAndActivate(t)
	ctx := context.Background()

	short, err := f.svc.Login(ctx, LoginInput{Email: "asha@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	long, err := f.svc.Login(ctx, LoginInput{Email: "asha@example.com", Password: "s3cret-pass", RememberMe: true})
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), short.Tokens.RefreshExpiresAt, time.Minute)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), long.Tokens.RefreshExpiresAt, time.Minute)

	rotated, err := f.tokens.RefreshAccessToken(ctx, long.Tokens.RefreshToken, "test", "127.0.0.1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), rotated.RefreshExpiresAt, time.Minute)

	// Rotated tokens cannot be reused
	_, err = f.tokens.RefreshAccessToken(ctx, long.Tokens.RefreshToken, "test", "127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAuthFixture()
	user := f.registerAndActivate(t)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, LoginInput{Email: "asha@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "asha@example.com"))
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@example.com"))
	require.Len(t, f.mailer.resets, 1)
	assert.Equal(t, user.ID, f.mailer.resets[0].to.UserID)
	token := tokenFromLink(t, f.mailer.resets[0].link)

	err = f.svc.ResetPassword(ctx, token, "new-password", "mismatch")
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))

	require.NoError(t, f.svc.ResetPassword(ctx, token, "new-password", "new-password"))

	// The link is bound to the old password
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "another-pass", "another-pass"), domain.ErrInvalidToken)

	_, err = f.svc.Login(ctx, LoginInput{Email: "asha@example.com", Password: "new-password"})
	assert.NoError(t, err)

	// Existing sessions were signed out
	_, err = f.tokens.RefreshAccessToken(ctx, session.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture()
	user := f.registerAndActivate(t)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, user.ID, "wrong-old", "new-password", "new-password")
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "old_password")

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "s3cret-pass", "new-password", "new-password"))
	_, err = f.svc.Login(ctx, LoginInput{Email: "asha@example.com", Password: "new-password"})
	assert.NoError(t, err)
}

func TestResendActivation(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.ResendActivation(ctx, "nobody@example.com"))
	assert.Empty(t, f.mailer.activations)

	_, err := f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	require.NoError(t, f.svc.ResendActivation(ctx, "asha@example.com"))
	assert.Len(t, f.mailer.activations, 2)

	_, err = f.svc.Activate(ctx, tokenFromLink(t, f.mailer.activations[1].link))
	require.NoError(t, err)
	require.NoError(t, f.svc.ResendActivation(ctx, "asha@example.com"))
	assert.Len(t, f.mailer.activations, 2)
}
