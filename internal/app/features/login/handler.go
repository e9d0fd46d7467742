// internal/app/features/login/handler.go
package login

import (
	"fmt"
	"time"

	uierrors "github.com/dalemusser/studyshare/internal/app/features/errors"
	"github.com/dalemusser/studyshare/internal/app/store/passwordreset"
	userstore "github.com/dalemusser/studyshare/internal/app/store/users"
	"github.com/dalemusser/studyshare/internal/app/system/auditlog"
	"github.com/dalemusser/studyshare/internal/app/system/auth"
	"github.com/dalemusser/studyshare/internal/app/system/mailer"
	"github.com/dalemusser/studyshare/internal/app/system/ratelimit"
	"github.com/dalemusser/studyshare/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the /api/auth endpoints: registration, login and the
// emailed-code password reset.
type Handler struct {
	Users    *userstore.Store
	Resets   *passwordreset.Store
	Tokens   *auth.TokenService
	Mailer   mailer.Sender
	Limiter  *ratelimit.LoginLimiter // per-IP and per-email login budget; nil disables
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
	SiteName string // used in the reset email subject and body
}

func NewHandler(
	db *mongo.Database,
	tokens *auth.TokenService,
	mail mailer.Sender,
	resetExpiry time.Duration,
	limiter *ratelimit.LoginLimiter,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	siteName string,
	logger *zap.Logger,
) *Handler {
	if siteName == "" {
		siteName = "StudyShare"
	}
	return &Handler{
		Users:    userstore.New(db),
		Resets:   passwordreset.New(db, resetExpiry),
		Tokens:   tokens,
		Mailer:   mail,
		Limiter:  limiter,
		AuditLog: audit,
		ErrLog:   errLog,
		Log:      logger,
		SiteName: siteName,
	}
}

// authResponse is returned by register and login.
type authResponse struct {
	Message   string         `json:"message"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      models.Profile `json:"user"`
}

func (h *Handler) issue(u models.User, msg string) (authResponse, error) {
	tok, exp, err := h.Tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return authResponse{}, err
	}
	return authResponse{Message: msg, Token: tok, ExpiresAt: exp, User: u.Profile()}, nil
}

// formatExpiryDuration formats a time.Duration as a human-readable string
// e.g., "10 minutes", "1 hour", "30 minutes"
func formatExpiryDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 60 {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours := minutes / 60
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
