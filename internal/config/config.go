package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"mailout/internal/tracking"
)

type DBConfig struct {
	DSN               string `envconfig:"DB_DSN" required:"true"`
	MaxConns          int32  `envconfig:"DB_POOL_MAX_CONNS" default:"10"`
	MinConns          int32  `envconfig:"DB_POOL_MIN_CONNS" default:"0"`
	MaxConnLifetime   string `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	MaxConnIdleTime   string `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME"`
	HealthCheckPeriod string `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD"`
	MigrateOnStart    bool   `envconfig:"MIGRATE_ON_START" default:"true"`
}

type APIConfig struct {
	DB          DBConfig `ignored:"true"`
	Port        string   `envconfig:"PORT" default:"8080"`
	MetricsPort string   `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string   `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
	// WriteTimeout must cover a full campaign send.
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10m"`

	// ESP
	ESPProvider          string  `envconfig:"ESP_PROVIDER" default:"resend"`
	ResendAPIKey         string  `envconfig:"RESEND_API_KEY"`
	ResendBaseURL        string  `envconfig:"RESEND_BASE_URL" default:"https://api.resend.com"`
	PostmarkServerToken  string  `envconfig:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string  `envconfig:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkStream       string  `envconfig:"POSTMARK_MESSAGE_STREAM" default:"broadcast"`
	SESConfigurationSet  string  `envconfig:"SES_CONFIGURATION_SET"`
	FromEmail            string  `envconfig:"FROM_EMAIL" default:"noreply@steinway.com.au"`
	ReplyToEmail         string  `envconfig:"REPLY_TO_EMAIL" default:"info@steinway.com.au"`
	ESPRPSPerPod         float64 `envconfig:"ESP_RPS_PER_POD" default:"0"`
	ESPBurst             int     `envconfig:"ESP_BURST" default:"1"`

	// AWS
	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	RecordQueueURL     string `envconfig:"RECORD_QUEUE_URL"`

	// Links and collaborators
	AppBaseURL       string        `envconfig:"APP_BASE_URL" default:"https://crm.steinway.com.au"`
	CustomerStoreURL string        `envconfig:"CUSTOMER_STORE_URL"`
	OrgDomain        string        `envconfig:"ORG_DOMAIN" default:"steinway.com.au"`
	ThumbnailURL     string        `envconfig:"THUMBNAIL_URL"`
	ThumbnailTimeout time.Duration `envconfig:"THUMBNAIL_TIMEOUT" default:"3s"`

	// Dispatch
	MessagesPerSecond int `envconfig:"MESSAGES_PER_SECOND" default:"10"`
	SendConcurrency   int `envconfig:"SEND_CONCURRENCY" default:"10"`
	SendBatchSize     int `envconfig:"SEND_BATCH_SIZE" default:"100"`
	SendMaxAttempts   int `envconfig:"SEND_MAX_ATTEMPTS" default:"3"`
	MaxRecipients     int `envconfig:"MAX_RECIPIENTS" default:"1000"`

	// Content
	PersonalizeEscapeHTML bool   `envconfig:"PERSONALIZE_ESCAPE_HTML" default:"true"`
	FooterTemplateFile    string `envconfig:"FOOTER_TEMPLATE_FILE"`
	BrandingFile          string `envconfig:"BRANDING_FILE"`

	// Locking
	RedisURL    string        `envconfig:"REDIS_URL"`
	SendLockTTL time.Duration `envconfig:"SEND_LOCK_TTL" default:"15m"`

	ResendWebhookSecret string `envconfig:"RESEND_WEBHOOK_SECRET"`
}

// CredentialMissing names the env var the selected ESP still needs, or ""
// when the send path is usable.
func (c APIConfig) CredentialMissing() string {
	switch strings.ToLower(c.ESPProvider) {
	case "resend":
		if c.ResendAPIKey == "" {
			return "RESEND_API_KEY"
		}
	case "postmark":
		if c.PostmarkServerToken == "" {
			return "POSTMARK_SERVER_TOKEN"
		}
	}
	return ""
}

func (c APIConfig) CustomerURL() string {
	if c.CustomerStoreURL != "" {
		return c.CustomerStoreURL
	}
	return strings.TrimRight(c.AppBaseURL, "/") + "/api/enquiries"
}

func (c APIConfig) ThumbnailEndpoint() string {
	if c.ThumbnailURL != "" {
		return c.ThumbnailURL
	}
	return strings.TrimRight(c.AppBaseURL, "/") + "/api/video/generate-thumbnail"
}

type RecorderConfig struct {
	DB        DBConfig `ignored:"true"`
	Port      string   `envconfig:"PORT" default:"8080"`
	LogFormat string   `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string   `envconfig:"LOG_LEVEL" default:"info"`

	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	RecordQueueURL     string `envconfig:"RECORD_QUEUE_URL" required:"true"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`
	Concurrency        int    `envconfig:"RECORDER_CONCURRENCY" default:"4"`
}

// MockESPConfig drives the local Resend-compatible stand-in.
type MockESPConfig struct {
	Port      string `envconfig:"PORT" default:"8090"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	APIKey    string `envconfig:"RESEND_API_KEY" default:"re_mock"`
	// RateLimitEvery answers every Nth request with 429; zero disables.
	RateLimitEvery int           `envconfig:"MOCK_RATE_LIMIT_EVERY" default:"0"`
	FailDomain     string        `envconfig:"MOCK_FAIL_DOMAIN"`
	BounceDomain   string        `envconfig:"MOCK_BOUNCE_DOMAIN"`
	Latency        time.Duration `envconfig:"MOCK_LATENCY" default:"50ms"`

	// WebhookURL receives email.delivered / email.bounced after each send.
	WebhookURL        string        `envconfig:"MOCK_WEBHOOK_URL"`
	WebhookSecret     string        `envconfig:"RESEND_WEBHOOK_SECRET"`
	WebhookDelay      time.Duration `envconfig:"MOCK_WEBHOOK_DELAY" default:"300ms"`
	WebhookMaxRetries int           `envconfig:"MOCK_WEBHOOK_MAX_RETRIES" default:"3"`
}

func LoadAPI() APIConfig {
	_ = godotenv.Load()
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	cfg.DB = loadDB()
	return cfg
}

func LoadRecorder() RecorderConfig {
	_ = godotenv.Load()
	var cfg RecorderConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	cfg.DB = loadDB()
	return cfg
}

func LoadMockESP() MockESPConfig {
	_ = godotenv.Load()
	var cfg MockESPConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func loadDB() DBConfig {
	var db DBConfig
	if err := envconfig.Process("", &db); err != nil {
		panic(err)
	}
	return db
}

type brandingFile struct {
	Enabled     *bool  `yaml:"enabled"`
	CompanyName string `yaml:"company_name"`
	Address     string `yaml:"address"`
	LogoURL     string `yaml:"logo_url"`
	WebsiteURL  string `yaml:"website_url"`
	Social      []struct {
		Name    string `yaml:"name"`
		URL     string `yaml:"url"`
		IconURL string `yaml:"icon_url"`
	} `yaml:"social"`
}

// LoadBranding reads the optional YAML branding file and applies
// FOOTER_BRANDING, BRAND_* and SOCIAL_*_URL overrides on top.
func LoadBranding(path string) (tracking.Branding, error) {
	var b tracking.Branding
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return b, fmt.Errorf("read branding file: %w", err)
		}
		var f brandingFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return b, fmt.Errorf("parse branding file: %w", err)
		}
		b = tracking.Branding{
			Enabled:     f.Enabled == nil || *f.Enabled,
			CompanyName: f.CompanyName,
			Address:     f.Address,
			LogoURL:     f.LogoURL,
			WebsiteURL:  f.WebsiteURL,
		}
		for _, s := range f.Social {
			b.Social = append(b.Social, tracking.SocialLink{Name: s.Name, URL: s.URL, IconURL: s.IconURL})
		}
	}

	if v, ok := os.LookupEnv("FOOTER_BRANDING"); ok {
		b.Enabled = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	override(&b.CompanyName, "BRAND_COMPANY_NAME")
	override(&b.Address, "BRAND_ADDRESS")
	override(&b.LogoURL, "BRAND_LOGO_URL")
	override(&b.WebsiteURL, "BRAND_WEBSITE_URL")
	for _, s := range []struct{ name, env string }{
		{"Facebook", "SOCIAL_FACEBOOK_URL"},
		{"Instagram", "SOCIAL_INSTAGRAM_URL"},
		{"YouTube", "SOCIAL_YOUTUBE_URL"},
	} {
		if v := os.Getenv(s.env); v != "" {
			b.Social = setSocial(b.Social, s.name, v)
		}
	}
	return b, nil
}

func override(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setSocial(links []tracking.SocialLink, name, url string) []tracking.SocialLink {
	for i := range links {
		if strings.EqualFold(links[i].Name, name) {
			links[i].URL = url
			return links
		}
	}
	return append(links, tracking.SocialLink{Name: name, URL: url})
}
