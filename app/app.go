package app

import (
	"github.com/go-chi/oauth"
	"github.com/jmoiron/sqlx"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/config"
	"github.com/mbolis/quick-forms/forms"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/notify"
	"github.com/mbolis/quick-forms/ratelimit"
	"github.com/mbolis/quick-forms/store"
	"github.com/mbolis/quick-forms/submissions"
)

type App struct {
	config.Config
	*oauth.BearerServer

	Users       *store.UserStore
	Tokens      *store.TokenStore
	Resolver    access.Resolver
	Forms       *forms.Service
	Submissions *submissions.Service
	Limiters    Limiters
}

// Limiters holds one rate limiter per throttled endpoint.
type Limiters struct {
	SignIn *ratelimit.Limiter
	SignUp *ratelimit.Limiter
	Submit *ratelimit.Limiter
}

// New wires the services over db. Rate limit hits are counted in counters,
// shared by every limiter under its own scope.
func New(cfg config.Config, db *sqlx.DB, counters ratelimit.CounterStore, publisher notify.Publisher) App {
	st := store.New(db)

	subs := submissions.NewService(st.Forms, st.Users, st.Submissions)
	subs.Validator.Strict = cfg.StrictAnswers
	if publisher != nil {
		subs.Publisher = publisher
	}

	return App{
		Config:       cfg,
		BearerServer: httpx.NewBearerServer(cfg.TokenSecret, cfg.TokenTTL, st.Users, st.Tokens),

		Users:       st.Users,
		Tokens:      st.Tokens,
		Resolver:    access.Resolver{Users: st.Users},
		Forms:       forms.NewService(st.Forms),
		Submissions: subs,
		Limiters: Limiters{
			SignIn: newLimiter(counters, "signin", cfg.SignInLimit),
			SignUp: newLimiter(counters, "signup", cfg.SignUpLimit),
			Submit: newLimiter(counters, "submit", cfg.SubmitLimit),
		},
	}
}

func newLimiter(counters ratelimit.CounterStore, scope string, p config.Policy) *ratelimit.Limiter {
	return ratelimit.New(counters, scope, p.Max, p.Window)
}
