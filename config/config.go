package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Addr          string
	DBUrl         string
	TokenSecret   string
	TokenTTL      time.Duration
	Debug         bool
	LogJSON       bool
	StrictAnswers bool
	BodyLimit     int64

	RedisURL  string
	AMQPUrl   string
	AMQPQueue string

	SignInLimit Policy
	SignUpLimit Policy
	SubmitLimit Policy
}

// Policy is a rate limit of Max requests per Window.
type Policy struct {
	Max    int
	Window time.Duration
}

func (p Policy) String() string {
	return fmt.Sprintf("%d/%s", p.Max, p.Window)
}

var rePolicy = regexp.MustCompile(`^\s*(\d+)\s*/\s*(\S+)\s*$`)

// ParsePolicy reads "N/duration", e.g. "5/15m".
func ParsePolicy(s string) (p Policy, err error) {
	m := rePolicy.FindStringSubmatch(s)
	if m == nil {
		return p, fmt.Errorf("invalid rate limit policy %q (want N/duration)", s)
	}
	p.Max, err = strconv.Atoi(m[1])
	if err != nil {
		return
	}
	p.Window, err = time.ParseDuration(m[2])
	if err != nil {
		return
	}
	if p.Max < 1 || p.Window <= 0 {
		err = fmt.Errorf("invalid rate limit policy %q: max and window must be positive", s)
	}
	return
}

// Load reads flags from args, then lets QFORMS_* environment variables and
// an optional .env file in the working directory fill anything not given on
// the command line.
func Load(args []string) (cfg Config, err error) {
	fs := pflag.NewFlagSet("quick-forms", pflag.ContinueOnError)
	fs.String("host", "0.0.0.0", "listen host name")
	fs.Uint("port", 80, "listen port number")
	fs.String("db-url", "qforms.sqlite", "path to SQLite3 DB file")
	fs.String("token-secret", "", "secret key for token encryption and decryption")
	fs.Uint("token-ttl", 7*24*3600, "access token TTL in seconds")
	fs.Bool("debug", false, "log at DEBUG level and expose internal error details")
	fs.Bool("log-json", false, "log as JSON lines")
	fs.Bool("strict-answers", false, "reject empty required answers and undeclared choice options")
	fs.Int64("body-limit", 10<<20, "largest accepted request body in bytes")
	fs.String("redis-url", "", "redis URL for shared rate limit counters (in-memory when empty)")
	fs.String("amqp-url", "", "RabbitMQ URL for submission notifications (disabled when empty)")
	fs.String("amqp-queue", "form.submissions", "queue receiving submission notifications")
	fs.String("ratelimit-signin", "5/15m", "sign-in attempts per client address")
	fs.String("ratelimit-signup", "3/1h", "sign-up attempts per client address")
	fs.String("ratelimit-submit", "10/15m", "form submissions per client address")
	if err = fs.Parse(args); err != nil {
		return
	}

	v := viper.New()
	v.SetEnvPrefix("QFORMS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err = v.BindPFlags(fs); err != nil {
		return
	}
	loadDotEnv(v, ".env")

	cfg.Addr = net.JoinHostPort(v.GetString("host"), strconv.Itoa(int(v.GetUint("port"))))
	cfg.DBUrl = v.GetString("db-url")
	cfg.TokenSecret = v.GetString("token-secret")
	cfg.TokenTTL = time.Duration(v.GetUint("token-ttl")) * time.Second
	cfg.Debug = v.GetBool("debug")
	cfg.LogJSON = v.GetBool("log-json")
	cfg.StrictAnswers = v.GetBool("strict-answers")
	cfg.BodyLimit = v.GetInt64("body-limit")
	cfg.RedisURL = v.GetString("redis-url")
	cfg.AMQPUrl = v.GetString("amqp-url")
	cfg.AMQPQueue = v.GetString("amqp-queue")

	if cfg.SignInLimit, err = ParsePolicy(v.GetString("ratelimit-signin")); err != nil {
		return
	}
	if cfg.SignUpLimit, err = ParsePolicy(v.GetString("ratelimit-signup")); err != nil {
		return
	}
	if cfg.SubmitLimit, err = ParsePolicy(v.GetString("ratelimit-submit")); err != nil {
		return
	}

	if cfg.BodyLimit < 1 {
		err = fmt.Errorf("invalid body limit %d: must be positive", cfg.BodyLimit)
		return
	}
	if cfg.TokenSecret == "" {
		err = errors.New("missing parameter --token-secret")
	}

	return
}

// loadDotEnv reads QFORMS_* entries from an env file as defaults, so that
// real environment variables and explicit flags still win.
func loadDotEnv(v *viper.Viper, path string) {
	f := viper.New()
	f.SetConfigFile(path)
	f.SetConfigType("env")
	if err := f.ReadInConfig(); err != nil {
		return
	}
	for _, k := range f.AllKeys() {
		name, ok := strings.CutPrefix(k, "qforms_")
		if !ok {
			continue
		}
		v.SetDefault(strings.ReplaceAll(name, "_", "-"), f.Get(k))
	}
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
