// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, log level); everything StudyShare
// needs beyond that lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Bearer token configuration
	JWTSecret string        // HMAC secret for signing tokens (32+ chars in production)
	JWTTTL    time.Duration // Token lifetime
	JWTIssuer string

	// File storage configuration
	StorageType      string // Storage backend: "local" or "s3"
	StorageLocalPath string // Local storage path (e.g., "./uploads")
	StorageLocalURL  string // URL prefix for serving local files (e.g., "/files")
	MaxUploadBytes   int64  // Largest accepted upload

	// S3 configuration (only used if StorageType is "s3")
	StorageS3Region          string
	StorageS3Bucket          string
	StorageS3Prefix          string // Key prefix (e.g., "studyshare/")
	StorageS3Endpoint        string // Custom endpoint for S3-compatible stores (MinIO, R2)
	StorageS3PublicURL       string // CDN or bucket URL used to build file links
	StorageS3AccessKeyID     string // Blank uses the default AWS credential chain
	StorageS3SecretAccessKey string

	// Email/SMTP configuration
	MailSMTPHost string // SMTP server host (blank disables sending)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string // From email address (e.g., noreply@studyshare.app)
	MailFromName string // From display name (e.g., StudyShare)

	// Password reset
	ResetCodeExpiry time.Duration

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth     string
	AuditLogResource string

	// Rate limits (requests per minute)
	AuthRateLimit   int // per client IP across /api/auth
	LoginIPLimit    int // login attempts per IP
	LoginEmailLimit int // login attempts per account per 15 minutes

	// Allowed browser origins for the SPA frontend
	CORSOrigins []string

	// Request timeouts (zero keeps the built-in default)
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
	TimeoutUpload time.Duration

	// Admin bootstrap: an existing account with this email is promoted on startup.
	AdminEmail string
}
