package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/oauth"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
)

// Claims carried by every access token.
const (
	ClaimUserID = "user_id"
	ClaimPlan   = "plan"
)

// how long a refresh token can be redeemed
const RefreshTTL = 365 * 24 * time.Hour

var errNotSupported = errors.New("not supported")

type Users interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type Tokens interface {
	Save(ctx context.Context, credential, tokenID, refreshTokenID string, expiresAt time.Time) error
	Consume(ctx context.Context, credential, tokenID, refreshTokenID string, now time.Time) error
}

type credentialsVerifier struct {
	users  Users
	tokens Tokens
	now    func() time.Time
}

func CredentialsVerifier(users Users, tokens Tokens) oauth.CredentialsVerifier {
	return &credentialsVerifier{users, tokens, time.Now}
}

// NewBearerServer issues access tokens for e-mail/password pairs and
// refresh tokens.
func NewBearerServer(secret string, ttl time.Duration, users Users, tokens Tokens) *oauth.BearerServer {
	return oauth.NewBearerServer(secret, ttl, CredentialsVerifier(users, tokens), nil)
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	user, err := cs.users.FindByEmail(r.Context(), username)
	if err != nil {
		return err
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return err
	}

	if err := cs.users.TouchLastLogin(r.Context(), user.ID, cs.now()); err != nil {
		log.WithError(err).Warn("credentials.touch_last_login")
	}
	return nil
}
func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	return cs.tokens.Save(context.Background(), credential, tokenID, refreshTokenID, cs.now().Add(RefreshTTL))
}
func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	return cs.tokens.Consume(context.Background(), credential, tokenID, refreshTokenID, cs.now())
}
func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	user, err := cs.users.FindByEmail(r.Context(), credential)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		ClaimUserID: user.ID,
		ClaimPlan:   string(user.Plan),
	}, nil
}
func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}
func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errNotSupported
}
