package config

import (
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Websocket connection timings.
const (
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 4096
)

const (
	DefaultChatSubject = "chat.broadcast"
	DefaultQueueSize   = 256
)

type Database struct {
	URL         string
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	SSLRootCert string
	MaxConns    int
}

// DSN returns DATABASE_URL when set, otherwise a postgres URL built from the
// individual settings. A root certificate path switches the default sslmode
// to verify-full.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	q := url.Values{}
	mode := d.SSLMode
	if mode == "" {
		mode = "disable"
		if d.SSLRootCert != "" {
			mode = "verify-full"
		}
	}
	q.Set("sslmode", mode)
	if d.SSLRootCert != "" {
		q.Set("sslrootcert", d.SSLRootCert)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

type Storage struct {
	Backend    string // "local" or "gridfs"
	UploadDir  string
	PublicPath string
	MongoURI   string
	MongoDB    string
	Bucket     string
}

type Relay struct {
	NatsURL      string
	Subject      string
	QueueSize    int
	SlowConsumer string // "drop" or "disconnect"
}

type Config struct {
	Addr           string
	StoreBackend   string // "postgres" or "memory"
	Database       Database
	Storage        Storage
	Relay          Relay
	AllowedOrigins []string
	JWTSecret      string
	BodyLimit      int
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	uploadMB := intOrDefault("MAX_UPLOAD_MB", 5)

	return Config{
		Addr:         ":" + envOrDefault("PORT", "5000"),
		StoreBackend: strings.ToLower(envOrDefault("STORE_BACKEND", "postgres")),
		Database: Database{
			URL:         os.Getenv("DATABASE_URL"),
			Host:        envOrDefault("DB_HOST", "localhost"),
			Port:        envOrDefault("DB_PORT", "5432"),
			User:        envOrDefault("DB_USER", "market"),
			Password:    os.Getenv("DB_PASSWORD"),
			Name:        envOrDefault("DB_NAME", "market"),
			SSLMode:     os.Getenv("DB_SSLMODE"),
			SSLRootCert: os.Getenv("DB_SSL_ROOT_CERT"),
			MaxConns:    intOrDefault("DB_MAX_CONNS", 10),
		},
		Storage: Storage{
			Backend:    strings.ToLower(envOrDefault("STORAGE_BACKEND", "local")),
			UploadDir:  envOrDefault("UPLOAD_DIR", "uploads"),
			PublicPath: "/uploads",
			MongoURI:   envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
			MongoDB:    envOrDefault("MONGO_DB", "market"),
			Bucket:     envOrDefault("GRIDFS_BUCKET", "images"),
		},
		Relay: Relay{
			NatsURL:      os.Getenv("NATS_URL"),
			Subject:      envOrDefault("CHAT_SUBJECT", DefaultChatSubject),
			QueueSize:    intOrDefault("RELAY_QUEUE_SIZE", DefaultQueueSize),
			SlowConsumer: strings.ToLower(envOrDefault("RELAY_SLOW_CONSUMER", "disconnect")),
		},
		AllowedOrigins: splitList(envOrDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5000")),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		BodyLimit:      uploadMB * 1024 * 1024,
	}
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(key string, fallback int) int {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
