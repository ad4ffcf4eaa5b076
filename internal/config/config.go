package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	MinIO    MinIOConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Mail     MailConfig
	Kafka    KafkaConfig
	Catalog  CatalogConfig
	Gallery  GalleryConfig
	Social   SocialConfig
}

type AppConfig struct {
	Env         string
	Port        string
	Version     string
	Debug       bool
	CORSOrigins string
	// PublicURL is the externally visible base used when building media URLs.
	PublicURL string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketMedia     string
	BucketRenders   string
	MaxUploadBytes  int64
}

type JWTConfig struct {
	Secret               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

type AdminConfig struct {
	// Email is always treated as an administrator, whatever its role says.
	Email         string
	LoginAttempts int
	LoginWindow   time.Duration
}

type MailConfig struct {
	Provider    string // "resend" or "log"
	APIKey      string
	APIURL      string
	From        string
	To          string
	LogoPath    string
	SendTimeout time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type CatalogConfig struct {
	PageSize     int
	MaxPageSize  int
	RelatedLimit int
	CacheTTL     time.Duration
}

type GalleryConfig struct {
	ZoomScale float64
	LensSize  float64
}

type SocialConfig struct {
	WhatsAppPhone   string
	WhatsAppMessage string
	Instagram       string
}

func Load() *Config {
	return &Config{
		App: AppConfig{
			Env:         getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Debug:       getBoolEnv("APP_DEBUG", false),
			CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
			PublicURL:   strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "postgres"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "altessa"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "altessa"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "redis"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		MinIO: MinIOConfig{
			Endpoint:        getEnv("MINIO_ENDPOINT", "minio:9000"),
			AccessKeyID:     getEnv("MINIO_ROOT_USER", ""),
			SecretAccessKey: getEnv("MINIO_ROOT_PASSWORD", ""),
			UseSSL:          getBoolEnv("MINIO_USE_SSL", false),
			BucketMedia:     getEnv("MINIO_BUCKET_MEDIA", "products-images"),
			BucketRenders:   getEnv("MINIO_BUCKET_RENDERS", "products-renders"),
			MaxUploadBytes:  int64(getIntEnv("MAX_UPLOAD_MB", 50)) * 1024 * 1024,
		},
		JWT: JWTConfig{
			Secret:               getEnv("JWT_SECRET", ""),
			AccessTokenDuration:  getDurationEnv("JWT_ACCESS_TOKEN_EXPIRE", "15m"),
			RefreshTokenDuration: getDurationEnv("JWT_REFRESH_TOKEN_EXPIRE", "7d"),
		},
		Admin: AdminConfig{
			Email:         strings.TrimSpace(getEnv("ADMIN_EMAIL", "")),
			LoginAttempts: getIntEnv("ADMIN_LOGIN_ATTEMPTS", 5),
			LoginWindow:   getDurationEnv("ADMIN_LOGIN_WINDOW", "15m"),
		},
		Mail: MailConfig{
			Provider:    getEnv("MAIL_PROVIDER", "log"),
			APIKey:      getEnv("RESEND_API_KEY", ""),
			APIURL:      getEnv("RESEND_API_URL", "https://api.resend.com/emails"),
			From:        getEnv("CONTACT_FROM_EMAIL", "Altessa Consulta <onboarding@resend.dev>"),
			To:          getEnv("CONTACT_ADMIN_EMAIL", getEnv("ADMIN_EMAIL", "")),
			LogoPath:    getEnv("CONTACT_LOGO_PATH", "assets/altessa-logo.svg"),
			SendTimeout: getDurationEnv("MAIL_SEND_TIMEOUT", "10s"),
		},
		Kafka: KafkaConfig{
			Enabled: getBoolEnv("KAFKA_ENABLED", false),
			Brokers: getListEnv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getEnv("KAFKA_TOPIC", "altessa.catalog"),
		},
		Catalog: CatalogConfig{
			PageSize:     getIntEnv("CATALOG_PAGE_SIZE", 12),
			MaxPageSize:  getIntEnv("CATALOG_MAX_PAGE_SIZE", 100),
			RelatedLimit: getIntEnv("CATALOG_RELATED_LIMIT", 4),
			CacheTTL:     getDurationEnv("CATALOG_CACHE_TTL", "5m"),
		},
		Gallery: GalleryConfig{
			ZoomScale: getFloatEnv("GALLERY_ZOOM_SCALE", 1.6),
			LensSize:  getFloatEnv("GALLERY_LENS_SIZE", 100),
		},
		Social: SocialConfig{
			WhatsAppPhone:   getEnv("WHATSAPP_PHONE", "1171466601"),
			WhatsAppMessage: getEnv("WHATSAPP_MESSAGE", "Hola, me interesa un reloj de Altessa"),
			Instagram:       getEnv("INSTAGRAM_USERNAME", "altessaluxe"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated value, dropping blanks.
func getListEnv(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDurationEnv(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)

	// "7d" style values
	if strings.HasSuffix(value, "d") {
		days := strings.TrimSuffix(value, "d")
		if d, err := strconv.Atoi(days); err == nil {
			return time.Duration(d) * 24 * time.Hour
		}
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return 15 * time.Minute
}
