// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/studyshare/internal/app/system/auditlog"
	"github.com/dalemusser/studyshare/internal/app/system/uploads"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// devJWTSecret is accepted outside production only.
const devJWTSecret = "dev-only-change-me-please-0123456789ABCDEF"

// minProdSecretLen is the shortest JWT secret accepted in production.
const minProdSecretLen = 32

// appConfigKeys defines the configuration keys for StudyShare.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: STUDYSHARE_MONGO_URI, STUDYSHARE_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "studyshare", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Bearer tokens
	{Name: "jwt_secret", Default: devJWTSecret, Desc: "JWT signing secret (must be strong in production)"},
	{Name: "jwt_ttl", Default: "7d", Desc: "Token lifetime (e.g., 24h, 7d)"},
	{Name: "jwt_issuer", Default: "studyshare", Desc: "Token issuer claim"},

	// File storage configuration
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded files"},
	{Name: "storage_local_url", Default: "/files", Desc: "URL prefix for serving local files"},
	{Name: "max_upload_mb", Default: 10, Desc: "Largest accepted upload in MiB"},

	// S3 configuration
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "", Desc: "S3 key prefix"},
	{Name: "storage_s3_endpoint", Default: "", Desc: "Custom S3 endpoint (MinIO, R2, LocalStack)"},
	{Name: "storage_s3_public_url", Default: "", Desc: "Public base URL for stored files (CDN or bucket URL)"},
	{Name: "storage_s3_access_key_id", Default: "", Desc: "S3 access key (blank uses the default AWS credential chain)"},
	{Name: "storage_s3_secret_access_key", Default: "", Desc: "S3 secret key"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@studyshare.app", Desc: "From email address"},
	{Name: "mail_from_name", Default: "StudyShare", Desc: "From display name"},

	// Password reset settings
	{Name: "reset_code_expiry", Default: "15m", Desc: "Password reset code expiry (e.g., 15m, 1h)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_resource", Default: "all", Desc: "Resource event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Rate limits
	{Name: "auth_rate_limit", Default: 30, Desc: "Requests per minute per IP across /api/auth"},
	{Name: "login_ip_limit", Default: 10, Desc: "Login attempts per minute per IP"},
	{Name: "login_email_limit", Default: 5, Desc: "Login attempts per account per 15 minutes"},

	// CORS
	{Name: "cors_origins", Default: "http://localhost:5173,http://localhost:3000", Desc: "Comma-separated allowed browser origins"},

	// Timeouts
	{Name: "timeout_short", Default: "", Desc: "Single-document operation timeout (e.g., 5s)"},
	{Name: "timeout_medium", Default: "", Desc: "List and search timeout (e.g., 10s)"},
	{Name: "timeout_long", Default: "", Desc: "Batch operation timeout (e.g., 30s)"},
	{Name: "timeout_upload", Default: "", Desc: "File upload timeout (e.g., 2m)"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of an existing user to promote to admin on startup"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STUDYSHARE_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "STUDYSHARE", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	jwtTTL, err := parseDays(appValues.String("jwt_ttl"), 7*24*time.Hour)
	if err != nil {
		return nil, AppConfig{}, fmt.Errorf("jwt_ttl: %w", err)
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret: appValues.String("jwt_secret"),
		JWTTTL:    jwtTTL,
		JWTIssuer: appValues.String("jwt_issuer"),

		// File storage
		StorageType:      strings.ToLower(strings.TrimSpace(appValues.String("storage_type"))),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),
		MaxUploadBytes:   int64(appValues.Int("max_upload_mb")) << 20,

		// S3
		StorageS3Region:          appValues.String("storage_s3_region"),
		StorageS3Bucket:          appValues.String("storage_s3_bucket"),
		StorageS3Prefix:          appValues.String("storage_s3_prefix"),
		StorageS3Endpoint:        appValues.String("storage_s3_endpoint"),
		StorageS3PublicURL:       appValues.String("storage_s3_public_url"),
		StorageS3AccessKeyID:     appValues.String("storage_s3_access_key_id"),
		StorageS3SecretAccessKey: appValues.String("storage_s3_secret_access_key"),

		// Email/SMTP
		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		ResetCodeExpiry: appValues.Duration("reset_code_expiry", 15*time.Minute),

		// Audit logging
		AuditLogAuth:     appValues.String("audit_log_auth"),
		AuditLogResource: appValues.String("audit_log_resource"),

		// Rate limits
		AuthRateLimit:   appValues.Int("auth_rate_limit"),
		LoginIPLimit:    appValues.Int("login_ip_limit"),
		LoginEmailLimit: appValues.Int("login_email_limit"),

		CORSOrigins: splitList(appValues.String("cors_origins")),

		// Timeouts
		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
		TimeoutUpload: appValues.Duration("timeout_upload", 0),

		AdminEmail: appValues.String("admin_email"),
	}

	return coreCfg, appCfg, nil
}

// parseDays accepts time.ParseDuration syntax plus a whole-day "Nd" form.
func parseDays(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	if strings.HasSuffix(s, "d") {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// StudyShare validates the MongoDB URI format, the JWT secret, the storage
// backend settings and the audit modes before anything connects.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	prod := coreCfg != nil && coreCfg.Env == "prod"
	if err := validateSecret(appCfg.JWTSecret, prod); err != nil {
		return err
	}
	if appCfg.JWTTTL <= 0 {
		return errors.New("jwt_ttl must be positive")
	}

	if err := validateStorage(appCfg); err != nil {
		return err
	}

	for name, mode := range map[string]string{
		"audit_log_auth":     appCfg.AuditLogAuth,
		"audit_log_resource": appCfg.AuditLogResource,
	} {
		switch mode {
		case auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", name, mode)
		}
	}

	if appCfg.ResetCodeExpiry <= 0 {
		return errors.New("reset_code_expiry must be positive")
	}
	return nil
}

func validateSecret(secret string, prod bool) error {
	if strings.TrimSpace(secret) == "" {
		return errors.New("jwt_secret is required")
	}
	if prod && (secret == devJWTSecret || len(secret) < minProdSecretLen) {
		return fmt.Errorf("jwt_secret must be a unique value of at least %d characters in production", minProdSecretLen)
	}
	return nil
}

func validateStorage(appCfg AppConfig) error {
	if appCfg.MaxUploadBytes <= 0 {
		return errors.New("max_upload_mb must be positive")
	}
	if appCfg.MaxUploadBytes > 10*uploads.DefaultMaxUploadBytes {
		return fmt.Errorf("max_upload_mb must be at most %d", 10*uploads.DefaultMaxUploadBytes>>20)
	}
	switch appCfg.StorageType {
	case "local":
		if appCfg.StorageLocalPath == "" {
			return errors.New("storage_local_path is required for local storage")
		}
		if !strings.HasPrefix(appCfg.StorageLocalURL, "/") {
			return errors.New("storage_local_url must start with /")
		}
	case "s3":
		if appCfg.StorageS3Bucket == "" || appCfg.StorageS3Region == "" {
			return errors.New("storage_s3_bucket and storage_s3_region are required for s3 storage")
		}
		if (appCfg.StorageS3AccessKeyID == "") != (appCfg.StorageS3SecretAccessKey == "") {
			return errors.New("storage_s3_access_key_id and storage_s3_secret_access_key must be set together")
		}
	default:
		return fmt.Errorf("storage_type must be 'local' or 's3' (got %q)", appCfg.StorageType)
	}
	return nil
}
