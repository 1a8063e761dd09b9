package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "STORE_BACKEND", "RELAY_QUEUE_SIZE", "ALLOWED_ORIGINS", "MAX_UPLOAD_MB", "JWT_SECRET"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Addr != ":5000" {
		t.Errorf("Addr = %q, want :5000", cfg.Addr)
	}
	if cfg.StoreBackend != "postgres" {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.Relay.QueueSize != DefaultQueueSize {
		t.Errorf("QueueSize = %d", cfg.Relay.QueueSize)
	}
	if cfg.BodyLimit != 5*1024*1024 {
		t.Errorf("BodyLimit = %d", cfg.BodyLimit)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("RELAY_QUEUE_SIZE", "not-a-number")
	t.Setenv("RELAY_SLOW_CONSUMER", "DROP")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()
	if cfg.Addr != ":8081" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Relay.QueueSize != DefaultQueueSize {
		t.Errorf("invalid queue size should fall back, got %d", cfg.Relay.QueueSize)
	}
	if cfg.Relay.SlowConsumer != "drop" {
		t.Errorf("SlowConsumer = %q", cfg.Relay.SlowConsumer)
	}
	if strings.Join(cfg.AllowedOrigins, "|") != "https://a.example|https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestDatabaseDSN(t *testing.T) {
	tests := []struct {
		name string
		db   Database
		want []string
	}{
		{
			name: "explicit url wins",
			db:   Database{URL: "postgres://x@y/z", Host: "ignored"},
			want: []string{"postgres://x@y/z"},
		},
		{
			name: "plain",
			db:   Database{Host: "db", Port: "5432", User: "u", Password: "p@ss", Name: "market"},
			want: []string{"postgres://u:p%40ss@db:5432/market", "sslmode=disable"},
		},
		{
			name: "root cert enables verification",
			db:   Database{Host: "db", Port: "5432", User: "u", Name: "market", SSLRootCert: "/certs/ca.pem"},
			want: []string{"sslmode=verify-full", "sslrootcert=%2Fcerts%2Fca.pem"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := tt.db.DSN()
			for _, part := range tt.want {
				if !strings.Contains(dsn, part) {
					t.Errorf("DSN %q missing %q", dsn, part)
				}
			}
		})
	}
}
