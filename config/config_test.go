package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "5/15m", want: Policy{Max: 5, Window: 15 * time.Minute}},
		{in: " 3 / 1h ", want: Policy{Max: 3, Window: time.Hour}},
		{in: "2/1s", want: Policy{Max: 2, Window: time.Second}},
		{in: "0/1m", wantErr: true},
		{in: "ten/1m", wantErr: true},
		{in: "5/forever", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParsePolicy(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"--token-secret", "s3cret", "--port", "8080"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "0.0.0.0:8080" {
		t.Errorf("expected addr 0.0.0.0:8080, got %s", cfg.Addr)
	}
	if cfg.Url() != "http://localhost:8080" {
		t.Errorf("expected url http://localhost:8080, got %s", cfg.Url())
	}
	if cfg.SubmitLimit != (Policy{Max: 10, Window: 15 * time.Minute}) {
		t.Errorf("unexpected submit policy %v", cfg.SubmitLimit)
	}
	if cfg.SignUpLimit != (Policy{Max: 3, Window: time.Hour}) {
		t.Errorf("unexpected sign-up policy %v", cfg.SignUpLimit)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Errorf("unexpected token ttl %s", cfg.TokenTTL)
	}
	if cfg.BodyLimit != 10<<20 {
		t.Errorf("unexpected body limit %d", cfg.BodyLimit)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("QFORMS_TOKEN_SECRET", "from-env")
	t.Setenv("QFORMS_STRICT_ANSWERS", "true")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TokenSecret != "from-env" {
		t.Errorf("expected token secret from env, got %q", cfg.TokenSecret)
	}
	if !cfg.StrictAnswers {
		t.Error("expected strict answers from env")
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	_, err := Load(nil)
	if err == nil || !strings.Contains(err.Error(), "token-secret") {
		t.Errorf("expected missing token-secret error, got %v", err)
	}
}

func TestLoad_BodyLimit(t *testing.T) {
	tests := []struct {
		arg     string
		want    int64
		wantErr bool
	}{
		{"--body-limit=1024", 1024, false},
		{"--body-limit=0", 0, true},
		{"--body-limit=-5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			cfg, err := Load([]string{"--token-secret", "s3cret", tt.arg})
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "body limit") {
					t.Errorf("expected body limit error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.BodyLimit != tt.want {
				t.Errorf("BodyLimit = %d, want %d", cfg.BodyLimit, tt.want)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	data := "QFORMS_TOKEN_SECRET=dotenv\nQFORMS_AMQP_QUEUE=audit\nOTHER=ignored\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	loadDotEnv(v, path)

	if got := v.GetString("token-secret"); got != "dotenv" {
		t.Errorf("expected token-secret from env file, got %q", got)
	}
	if got := v.GetString("amqp-queue"); got != "audit" {
		t.Errorf("expected amqp-queue from env file, got %q", got)
	}
	if v.IsSet("other") {
		t.Error("expected unprefixed keys to be ignored")
	}
}
