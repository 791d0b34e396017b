package auth

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/speechgate/internal/config"
)

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(&fakeProvider{})

	p, err := r.Get("fake")
	if err != nil {
		t.Fatalf("Get(fake) error = %v", err)
	}
	if p.Name() != "fake" {
		t.Errorf("Name() = %q, want fake", p.Name())
	}

	if _, err := r.Get("github"); err == nil || err.Error() != "unknown identity provider: github" {
		t.Errorf("Get(github) err = %v", err)
	}
}

func TestNewProviderFromConfig(t *testing.T) {
	tests := []struct {
		name           string
		cfg            config.Config
		wantConfigured bool
		wantName       string
	}{
		{
			name:           "Clerkの秘密鍵のみ",
			cfg:            config.Config{AuthProvider: "clerk", ClerkSecretKey: "sk_test_abc"},
			wantConfigured: true,
			wantName:       "clerk",
		},
		{
			name: "Supabaseを選択",
			cfg: config.Config{
				AuthProvider:      "Supabase",
				SupabaseURL:       "https://abc.supabase.co",
				SupabaseJWTSecret: "secret",
			},
			wantConfigured: true,
			wantName:       "supabase",
		},
		{
			name: "Clerkの鍵が不正でもSupabaseは使える",
			cfg: config.Config{
				AuthProvider:      "supabase",
				ClerkJWTKey:       "not a pem",
				SupabaseURL:       "https://abc.supabase.co",
				SupabaseJWTSecret: "secret",
			},
			wantConfigured: true,
			wantName:       "supabase",
		},
		{
			name:           "鍵なし",
			cfg:            config.Config{AuthProvider: "clerk"},
			wantConfigured: false,
		},
		{
			name:           "選択したプロバイダーが未設定",
			cfg:            config.Config{AuthProvider: "supabase", ClerkSecretKey: "sk_test_abc"},
			wantConfigured: false,
		},
		{
			name:           "不正なPEM",
			cfg:            config.Config{AuthProvider: "clerk", ClerkJWTKey: "not a pem"},
			wantConfigured: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capability := NewProviderFromConfig(&tt.cfg, nil, slog.New(slog.NewJSONHandler(io.Discard, nil)))

			p, ok := capability.Get()
			if ok != tt.wantConfigured {
				t.Fatalf("configured = %v, want %v (reason %q)", ok, tt.wantConfigured, capability.Reason())
			}
			if tt.wantConfigured && p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
			if !tt.wantConfigured && capability.Reason() == "" {
				t.Error("Reason() should explain why the provider is unavailable")
			}
		})
	}
}

func TestNewProviderFromConfig_LogsSkippedProvider(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AuthProvider: "clerk", ClerkJWTKey: "not a pem"}

	capability := NewProviderFromConfig(&cfg, nil, slog.New(slog.NewJSONHandler(&buf, nil)))

	if !strings.Contains(capability.Reason(), "CLERK_JWT_KEY") {
		t.Errorf("Reason() = %q, want the parse failure", capability.Reason())
	}
	if !strings.Contains(buf.String(), "identity provider skipped") {
		t.Errorf("expected skip log, got %s", buf.String())
	}
}
