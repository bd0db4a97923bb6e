package routes

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/oauth"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/fault"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
	"github.com/mbolis/quick-forms/store"
)

var validate = validator.New()

type signUpRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

const (
	signUpRequired = "Name, email, and password are required"
	signInRequired = "Email and password are required"
)

// messages for the rules other than required, by field and tag
var ruleMessages = map[string]string{
	"Email.email":  "Please enter a valid email address",
	"Password.min": "Password must be at least 6 characters long",
	"Name.min":     "Name must be between 2 and 50 characters",
	"Name.max":     "Name must be between 2 and 50 characters",
}

var errGrantRefused = errors.New("grant refused")

// validationFault turns validator errors into one message per failed rule.
func validationFault(err error, required string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fault.Malformed("Invalid request body")
	}

	seen := map[string]bool{}
	var msgs []error
	for _, fe := range verrs {
		msg := required
		if fe.Tag() != "required" {
			msg = ruleMessages[fe.Field()+"."+fe.Tag()]
		}
		if msg == "" || seen[msg] {
			continue
		}
		seen[msg] = true
		msgs = append(msgs, errors.New(msg))
	}
	return fault.Validation(msgs)
}

type tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type session struct {
	User *model.User `json:"user,omitempty"`
	tokens
}

func SignUp(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signUpRequest
		if err := decodeBody(r, &req); err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if err := validate.Struct(req); err != nil {
			httpx.WriteFault(w, r, validationFault(err, signUpRequired), app.Debug)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			httpx.WriteFault(w, r, fault.Internal("signup.hash_password", err), app.Debug)
			return
		}
		id, err := model.NewID()
		if err != nil {
			httpx.WriteFault(w, r, fault.Internal("signup.new_id", err), app.Debug)
			return
		}

		now := time.Now()
		user := &model.User{
			ID:           id,
			Email:        req.Email,
			Name:         req.Name,
			PasswordHash: string(hash),
			Plan:         model.Free,
			IsActive:     true,
			CreatedAt:    now,
		}
		err = app.Users.Create(r.Context(), user)
		if errors.Is(err, store.ErrDuplicate) {
			httpx.WriteFault(w, r, fault.Conflict("An account with this email already exists"), app.Debug)
			return
		}
		if err != nil {
			httpx.WriteFault(w, r, fault.Internal("db.insert_user", err), app.Debug)
			return
		}
		log.WithField("user_id", user.ID).Info("user signed up")

		tok, err := passwordGrant(app, r, req.Email, req.Password)
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		httpx.SuccessStatus(w, r, http.StatusCreated, session{user, *tok}, "Account created successfully")
	}
}

func SignIn(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signInRequest
		if err := decodeBody(r, &req); err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if err := validate.Struct(req); err != nil {
			httpx.WriteFault(w, r, validationFault(err, signInRequired), app.Debug)
			return
		}

		tok, err := passwordGrant(app, r, req.Email, req.Password)
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}

		user, err := app.Users.FindByEmail(r.Context(), req.Email)
		if err != nil {
			httpx.WriteFault(w, r, fault.Internal("db.select_user", err), app.Debug)
			return
		}
		httpx.Success(w, r, session{user, *tok}, "Sign in successful")
	}
}

var reRefresh = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

// Refresh trades a refresh token, given in the body or as
// "Authorization: Refresh <token>", for a new token pair.
func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		token := ""
		if match := reRefresh.FindStringSubmatch(r.Header.Get("authorization")); match != nil {
			token = match[1]
		} else if err := decodeBody(r, &body); err == nil {
			token = body.RefreshToken
		}
		if token == "" {
			httpx.WriteFault(w, r, fault.Unauthorized("Refresh token required"), app.Debug)
			return
		}

		tok, err := grant(app, r, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {token},
		})
		if errors.Is(err, errGrantRefused) {
			err = fault.Unauthorized("Invalid or expired refresh token")
		}
		if err != nil {
			httpx.WriteFault(w, r, err, app.Debug)
			return
		}
		httpx.Success(w, r, session{tokens: *tok}, "Token refreshed successfully")
	}
}

// Logout revokes every refresh token issued to the caller. Access tokens stay
// valid until they expire.
func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credential, _ := r.Context().Value(oauth.CredentialContext).(string)
		if err := app.Tokens.Revoke(r.Context(), credential); err != nil {
			httpx.WriteFault(w, r, fault.Internal("db.revoke_tokens", err), app.Debug)
			return
		}
		httpx.Success(w, r, nil, "Logout successful")
	}
}

func passwordGrant(app app.App, r *http.Request, email, password string) (*tokens, error) {
	tok, err := grant(app, r, url.Values{
		"grant_type": {"password"},
		"username":   {email},
		"password":   {password},
	})
	if errors.Is(err, errGrantRefused) {
		return nil, fault.Unauthorized("Invalid email or password")
	}
	return tok, err
}

// grant runs a token request through the bearer server.
func grant(app app.App, r *http.Request, body url.Values) (*tokens, error) {
	encoded := body.Encode()
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, "/", strings.NewReader(encoded))
	if err != nil {
		return nil, fault.Internal("auth.new_request", err)
	}
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("content-length", strconv.Itoa(len(encoded)))

	resp := httpx.NewResponseBuffer()
	app.UserCredentials(resp, req)
	if resp.Status() != http.StatusOK {
		log.WithField("status", resp.Status()).Debug("auth.grant_refused")
		return nil, errGrantRefused
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fault.Internal("auth.decode_token", err)
	}
	return &tokens{out.AccessToken, out.RefreshToken, out.TokenType, out.ExpiresIn}, nil
}
