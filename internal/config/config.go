package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/folio-works/portfolio-api/internal/secrets"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	GitHub    GitHubConfig
	Sync      SyncConfig
	Deploy    DeployConfig
	History   HistoryConfig
	Admin     AdminConfig
	Session   SessionConfig
	Secrets   SecretsConfig
	Logging   LoggingConfig
	Server    ServerConfig
	CORS      CORSConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
	// PublicBaseURL is the externally reachable base URL of this API, used to build
	// URLs for images served from local storage
	PublicBaseURL string
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite"
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	AutoMigrate     bool
}

// StorageConfig selects the blob host that pending images are uploaded to.
// Mode is one of "local", "azure", "r2", "imagekit" or "cloudinary".
type StorageConfig struct {
	Mode            string
	LocalBasePath   string
	MaxUploadSizeMB int64
	Azure           AzureBlobConfig
	R2              R2Config
	ImageKit        ImageKitConfig
	Cloudinary      CloudinaryConfig
}

type AzureBlobConfig struct {
	ConnectionString string
	Container        string
	// PublicURL overrides the container URL used when building public image URLs (e.g. a CDN)
	PublicURL string
}

// R2Config holds Cloudflare R2 credentials. R2 speaks the S3 API.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Endpoint overrides {accountId}.r2.cloudflarestorage.com
	Endpoint string
	UseSSL   bool
	// PublicDomain is the custom domain bound to the bucket; defaults to pub-{accountId}.r2.dev
	PublicDomain string
	// ImagesDomain enables Cloudflare image resizing URLs when set
	ImagesDomain string
}

type ImageKitConfig struct {
	PublicKey    string
	PrivateKey   string
	URLEndpoint  string
	Folder       string
	// UploadPrefix is the upload API base the file path is appended to
	UploadPrefix string
	Timeout      int
}

type CloudinaryConfig struct {
	CloudName    string
	UploadPreset string
	APIKey       string
	APISecret    string
	Folder       string
	APIBaseURL   string
	Timeout      int
}

// GitHubConfig describes the repository file the deployed site reads its content from
type GitHubConfig struct {
	Token string
	// Repository in owner/name form
	Repository    string
	Branch        string
	Path          string
	CommitMessage string
	APIBaseURL    string
	MaxAttempts   int
	Timeout       int
}

type SyncConfig struct {
	Enabled           bool
	Schedule          string
	Timeout           int
	RunOnStartup      bool
	SyncOnLogout      bool
	UploadConcurrency int
	// PruneSchedule is the cron spec for deleting image bytes that were published
	// more than PruneAfterHours ago; empty disables pruning
	PruneSchedule   string
	PruneAfterHours int
}

type DeployConfig struct {
	// SiteURL is the deployed static site, e.g. https://example.netlify.app
	SiteURL  string
	DataPath string
	// HookURL is an optional build hook POSTed after a successful publish
	HookURL string
	Timeout int
}

type HistoryConfig struct {
	Enabled     bool
	Path        string
	AuthorName  string
	AuthorEmail string
}

type AdminConfig struct {
	Email        string
	PasswordHash string
	JWTSecret    string
	TokenTTL     int // minutes
	APIKey       string
}

type SessionConfig struct {
	// RedisURL enables the Redis session store; sessions are kept in memory when empty
	RedisURL string
	Prefix   string
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	// "auto" uses environment in development, vault in staging/production
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	// AllowedOrigins is a list of allowed origins for CORS requests
	// Use "*" to allow all origins (not recommended for production)
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the max age (in seconds) for preflight cache
	MaxAge int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool
	ContentSecurityPolicy string
	// FrameOptions sets the X-Frame-Options header (DENY, SAMEORIGIN, or empty to disable)
	FrameOptions       string
	ContentTypeNosniff bool
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute is the default rate limit per IP
	RequestsPerMinute int
	// LoginRequestsPerMinute limits login attempts per IP
	LoginRequestsPerMinute int
	WhitelistIPs           []string
	WhitelistPaths         []string
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// MaxUploadBytes returns the upload limit in bytes
func (s *StorageConfig) MaxUploadBytes() int64 {
	return s.MaxUploadSizeMB * 1024 * 1024
}

func (c *ImageKitConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *CloudinaryConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (g *GitHubConfig) TimeoutDuration() time.Duration {
	return time.Duration(g.Timeout) * time.Second
}

// OwnerAndRepo splits Repository into its owner and name
func (g *GitHubConfig) OwnerAndRepo() (string, string, error) {
	owner, name, ok := strings.Cut(strings.Trim(g.Repository, "/"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("github repository must be in owner/name form, got %q", g.Repository)
	}
	return owner, name, nil
}

func (s *SyncConfig) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

func (s *SyncConfig) PruneAfterDuration() time.Duration {
	return time.Duration(s.PruneAfterHours) * time.Hour
}

func (d *DeployConfig) TimeoutDuration() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}

// TokenTTLDuration returns the admin token lifetime
func (a *AdminConfig) TokenTTLDuration() time.Duration {
	return time.Duration(a.TokenTTL) * time.Minute
}

// Load loads configuration from file and environment variables
// This is a basic load that doesn't fetch secrets from vault
// Use LoadWithSecrets for full secret resolution
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvFallbacks(v, &cfg)

	return &cfg, nil
}

// applyEnvFallbacks maps the conventional variable names used by the hosting
// providers onto config fields that were left empty
func applyEnvFallbacks(v *viper.Viper, cfg *Config) {
	fallback := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if val := v.GetString(k); val != "" {
				*dst = val
				return
			}
		}
	}

	fallback(&cfg.GitHub.Token, "GITHUB_TOKEN")
	fallback(&cfg.GitHub.Repository, "GITHUB_REPO")
	fallback(&cfg.GitHub.Branch, "GITHUB_BRANCH")

	fallback(&cfg.Storage.R2.AccountID, "CLOUDFLARE_ACCOUNT_ID")
	fallback(&cfg.Storage.R2.AccessKeyID, "CLOUDFLARE_R2_ACCESS_KEY_ID")
	fallback(&cfg.Storage.R2.SecretAccessKey, "CLOUDFLARE_R2_SECRET_ACCESS_KEY")
	fallback(&cfg.Storage.R2.Bucket, "CLOUDFLARE_R2_BUCKET_NAME")
	fallback(&cfg.Storage.R2.PublicDomain, "CLOUDFLARE_R2_DOMAIN")
	fallback(&cfg.Storage.R2.ImagesDomain, "CLOUDFLARE_IMAGES_DOMAIN")

	fallback(&cfg.Storage.ImageKit.PublicKey, "IMAGEKIT_PUBLIC_KEY")
	fallback(&cfg.Storage.ImageKit.PrivateKey, "IMAGEKIT_PRIVATE_KEY")
	fallback(&cfg.Storage.ImageKit.URLEndpoint, "IMAGEKIT_URL_ENDPOINT")

	fallback(&cfg.Storage.Cloudinary.CloudName, "CLOUDINARY_CLOUD_NAME")
	fallback(&cfg.Storage.Cloudinary.APIKey, "CLOUDINARY_API_KEY")
	fallback(&cfg.Storage.Cloudinary.APISecret, "CLOUDINARY_API_SECRET")

	fallback(&cfg.Storage.Azure.ConnectionString, "AZURE_STORAGE_CONNECTION_STRING")

	fallback(&cfg.Admin.Email, "ADMIN_EMAIL")
	fallback(&cfg.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	fallback(&cfg.Admin.JWTSecret, "JWT_SECRET")
	fallback(&cfg.Admin.APIKey, "ADMIN_API_KEY")

	fallback(&cfg.Session.RedisURL, "REDIS_URL")
	fallback(&cfg.Deploy.SiteURL, "SITE_URL")
	fallback(&cfg.Deploy.HookURL, "DEPLOY_HOOK_URL")

	fallback(&cfg.Secrets.KeyVaultName, "AZURE_KEY_VAULT_NAME")
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source
//
// Key Vault is used when BOTH conditions are met:
// 1. USE_AZURE_KEY_VAULT environment variable is set to "true"
// 2. Environment is "staging" or "production"
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if !useKeyVault {
		logger.Info("USE_AZURE_KEY_VAULT not enabled, using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if !isValidEnv {
		logger.Warn("USE_AZURE_KEY_VAULT is enabled but environment is not staging or production, using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	logger.Info("Azure Key Vault enabled for secrets",
		zap.String("environment", cfg.App.Environment),
		zap.String("keyVaultName", cfg.Secrets.KeyVaultName),
	)

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider (USE_AZURE_KEY_VAULT=true requires valid vault): %w", err)
	}

	if err := resolveSecrets(ctx, cfg, provider); err != nil {
		return nil, err
	}

	logger.Info("Secrets loaded from vault successfully")
	return cfg, nil
}

// secretBinding ties a Key Vault secret (with its env fallback) to a config field
type secretBinding struct {
	vaultName string
	envName   string
	dst       *string
}

func resolveSecrets(ctx context.Context, cfg *Config, provider *secrets.Provider) error {
	bindings := []secretBinding{
		{"postgres-password", "DATABASE_PASSWORD", &cfg.Database.Password},
		{"github-token", "GITHUB_TOKEN", &cfg.GitHub.Token},
		{"admin-password-hash", "ADMIN_PASSWORD_HASH", &cfg.Admin.PasswordHash},
		{"jwt-secret", "JWT_SECRET", &cfg.Admin.JWTSecret},
		{"admin-api-key", "ADMIN_API_KEY", &cfg.Admin.APIKey},
		{"storage-connection-string", "AZURE_STORAGE_CONNECTION_STRING", &cfg.Storage.Azure.ConnectionString},
		{"r2-secret-access-key", "CLOUDFLARE_R2_SECRET_ACCESS_KEY", &cfg.Storage.R2.SecretAccessKey},
		{"imagekit-private-key", "IMAGEKIT_PRIVATE_KEY", &cfg.Storage.ImageKit.PrivateKey},
		{"cloudinary-api-secret", "CLOUDINARY_API_SECRET", &cfg.Storage.Cloudinary.APISecret},
		{"redis-url", "REDIS_URL", &cfg.Session.RedisURL},
	}

	for _, b := range bindings {
		val, err := provider.GetSecretOrEnv(ctx, b.vaultName, b.envName)
		if err != nil {
			// Optional secrets: keep whatever the environment already provided
			continue
		}
		if val != "" {
			*b.dst = val
		}
	}

	if cfg.Admin.JWTSecret == "" {
		return fmt.Errorf("jwt-secret is required when secrets are loaded from Key Vault")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Portfolio API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.publicBaseURL", "http://localhost:8080")

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "portfolio")
	v.SetDefault("database.user", "portfolio_user")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.sqlitePath", "./portfolio.db")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 2)
	v.SetDefault("database.connMaxLifetime", 300)
	v.SetDefault("database.autoMigrate", false)

	// Storage defaults
	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.maxUploadSizeMB", 20)
	v.SetDefault("storage.azure.connectionString", "")
	v.SetDefault("storage.azure.container", "portfolio-images")
	v.SetDefault("storage.azure.publicURL", "")
	v.SetDefault("storage.r2.accountID", "")
	v.SetDefault("storage.r2.accessKeyID", "")
	v.SetDefault("storage.r2.secretAccessKey", "")
	v.SetDefault("storage.r2.bucket", "")
	v.SetDefault("storage.r2.endpoint", "")
	v.SetDefault("storage.r2.useSSL", true)
	v.SetDefault("storage.r2.publicDomain", "")
	v.SetDefault("storage.r2.imagesDomain", "")
	v.SetDefault("storage.imageKit.publicKey", "")
	v.SetDefault("storage.imageKit.privateKey", "")
	v.SetDefault("storage.imageKit.urlEndpoint", "")
	v.SetDefault("storage.imageKit.folder", "/portfolio")
	v.SetDefault("storage.imageKit.uploadPrefix", "https://upload.imagekit.io/api/v1/")
	v.SetDefault("storage.imageKit.timeout", 25)
	v.SetDefault("storage.cloudinary.cloudName", "")
	v.SetDefault("storage.cloudinary.uploadPreset", "portfolio_images")
	v.SetDefault("storage.cloudinary.apiKey", "")
	v.SetDefault("storage.cloudinary.apiSecret", "")
	v.SetDefault("storage.cloudinary.folder", "portfolio")
	v.SetDefault("storage.cloudinary.apiBaseURL", "https://api.cloudinary.com")
	v.SetDefault("storage.cloudinary.timeout", 25)

	// GitHub defaults
	v.SetDefault("github.token", "")
	v.SetDefault("github.repository", "")
	v.SetDefault("github.branch", "main")
	v.SetDefault("github.path", "public/data.json")
	v.SetDefault("github.commitMessage", "Update content from admin panel")
	v.SetDefault("github.apiBaseURL", "")
	v.SetDefault("github.maxAttempts", 3)
	v.SetDefault("github.timeout", 30)

	// Sync defaults
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.schedule", "0 */15 * * * *") // every 15 minutes (with seconds)
	v.SetDefault("sync.timeout", 300)
	v.SetDefault("sync.runOnStartup", false)
	v.SetDefault("sync.syncOnLogout", true)
	v.SetDefault("sync.uploadConcurrency", 4)
	v.SetDefault("sync.pruneSchedule", "0 30 3 * * *") // daily at 03:30
	v.SetDefault("sync.pruneAfterHours", 168)

	// Deploy defaults
	v.SetDefault("deploy.siteURL", "")
	v.SetDefault("deploy.dataPath", "/data.json")
	v.SetDefault("deploy.hookURL", "")
	v.SetDefault("deploy.timeout", 30)

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "./history")
	v.SetDefault("history.authorName", "Portfolio Admin")
	v.SetDefault("history.authorEmail", "admin@localhost")

	// Admin defaults
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.passwordHash", "")
	v.SetDefault("admin.jwtSecret", "")
	v.SetDefault("admin.tokenTTL", 720) // 12 hours
	v.SetDefault("admin.apiKey", "")

	// Session defaults
	v.SetDefault("session.redisURL", "")
	v.SetDefault("session.prefix", "portfolio:session:")

	// Secrets defaults
	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300) // 5 minutes

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// Server defaults
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 120) // image uploads and publishes can be slow
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)

	// CORS defaults
	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	// Security header defaults
	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.hstsPreload", false)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")
	v.SetDefault("security.permissionsPolicy", "geolocation=(), microphone=(), camera=()")

	// Rate limiting defaults
	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 120)
	v.SetDefault("rateLimit.loginRequestsPerMinute", 10)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db", "/health/ready"})
}
