package config

import (
	"testing"
	"time"
)

// setRequiredEnv sets the minimum environment for Load to succeed.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/imgvault")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("IMGUR_CLIENT_ID", "test-client-id")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AppEnv != "development" {
		t.Errorf("expected development, got %s", cfg.AppEnv)
	}
	if cfg.AppPort != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.AppPort)
	}
	if cfg.ImgurBaseURL != "https://api.imgur.com/3" {
		t.Errorf("unexpected base URL: %s", cfg.ImgurBaseURL)
	}
	if cfg.MaxUploadSize != 10485760 {
		t.Errorf("unexpected max upload size: %d", cfg.MaxUploadSize)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("unexpected token TTL: %s", cfg.JWTTTL)
	}
	if !cfg.RateLimitEnabled || !cfg.CleanupEnabled {
		t.Error("rate limiting and cleanup default to enabled")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("IMGUR_CLIENT_ID", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing IMGUR_CLIENT_ID")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("IMGUR_REQUEST_TIMEOUT", "10s")
	t.Setenv("MAX_UPLOAD_SIZE", "5242880")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.IsProduction() || cfg.IsDevelopment() {
		t.Error("expected production mode")
	}
	if cfg.ImgurRequestTimeout != 10*time.Second {
		t.Errorf("unexpected request timeout: %s", cfg.ImgurRequestTimeout)
	}
	if cfg.MaxUploadSize != 5242880 {
		t.Errorf("unexpected max upload size: %d", cfg.MaxUploadSize)
	}
}

func TestGetAllowedContentTypes(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{
			name:  "defaults",
			value: "image/jpeg,image/png,image/gif",
			want:  []string{"image/jpeg", "image/png", "image/gif"},
		},
		{
			name:  "spaces and empties",
			value: " image/jpeg , ,image/webp,",
			want:  []string{"image/jpeg", "image/webp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedContentTypes: tt.value}
			got := cfg.GetAllowedContentTypes()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}
