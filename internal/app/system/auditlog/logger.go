// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/studyshare/internal/app/store/audit"
	"github.com/dalemusser/studyshare/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category of events.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls registration, login, password reset and profile events.
	Auth string
	// Resource controls resource create/update/delete events.
	Resource string
}

// Logger records audit events to MongoDB (via audit.Store) and zap.
// A nil *Logger is valid and drops every event.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event according to the category's destination.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryResource:
		setting = l.config.Resource
	default:
		setting = All
	}

	if setting == Off || setting == "" {
		return
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}

	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func authEvent(r *http.Request, eventType string, userID *primitive.ObjectID, success bool, reason string, details map[string]string) audit.Event {
	return audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        userID,
		IP:            ratelimit.ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       success,
		FailureReason: reason,
		Details:       details,
	}
}

// --- Authentication Events ---

// Registered logs a new account.
func (l *Logger) Registered(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, authEvent(r, audit.EventRegistered, &userID, true, "", map[string]string{"email": email}))
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, authEvent(r, audit.EventLoginSuccess, &userID, true, "", map[string]string{"email": email}))
}

// LoginFailedUserNotFound logs a login for an unknown email.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	l.Log(ctx, authEvent(r, audit.EventLoginFailedUserNotFound, nil, false, "user not found",
		map[string]string{"attempted_email": attemptedEmail}))
}

// LoginFailedWrongPassword logs a failed login due to wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, authEvent(r, audit.EventLoginFailedWrongPassword, &userID, false, "wrong password",
		map[string]string{"email": email}))
}

// LoginFailedRateLimit logs a login rejected by the limiter.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, email string) {
	l.Log(ctx, authEvent(r, audit.EventLoginFailedRateLimit, nil, false, "rate limited",
		map[string]string{"email": email}))
}

// ResetCodeSent logs a password reset code being issued.
func (l *Logger) ResetCodeSent(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, authEvent(r, audit.EventResetCodeSent, &userID, true, "", map[string]string{"email": email}))
}

// ResetCodeFailed logs a rejected reset code.
func (l *Logger) ResetCodeFailed(ctx context.Context, r *http.Request, email, reason string) {
	l.Log(ctx, authEvent(r, audit.EventResetCodeFailed, nil, false, reason, map[string]string{"email": email}))
}

// PasswordReset logs a completed password reset.
func (l *Logger) PasswordReset(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, authEvent(r, audit.EventPasswordReset, &userID, true, "", nil))
}

// PasswordChanged logs a signed-in password change.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, authEvent(r, audit.EventPasswordChanged, &userID, true, "", nil))
}

// ProfileUpdated logs a change to the caller's own profile.
func (l *Logger) ProfileUpdated(ctx context.Context, r *http.Request, userID primitive.ObjectID, fieldsChanged string) {
	l.Log(ctx, authEvent(r, audit.EventProfileUpdated, &userID, true, "",
		map[string]string{"fields_changed": fieldsChanged}))
}

// --- Resource Events ---

func (l *Logger) resourceEvent(ctx context.Context, r *http.Request, eventType string, actorID, resourceID primitive.ObjectID, title string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryResource,
		EventType: eventType,
		UserID:    &actorID,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"resource_id":    resourceID.Hex(),
			"resource_title": title,
		},
	})
}

// ResourceCreated logs an upload.
func (l *Logger) ResourceCreated(ctx context.Context, r *http.Request, actorID, resourceID primitive.ObjectID, title string) {
	l.resourceEvent(ctx, r, audit.EventResourceCreated, actorID, resourceID, title)
}

// ResourceUpdated logs an owner edit.
func (l *Logger) ResourceUpdated(ctx context.Context, r *http.Request, actorID, resourceID primitive.ObjectID, title string) {
	l.resourceEvent(ctx, r, audit.EventResourceUpdated, actorID, resourceID, title)
}

// ResourceDeleted logs an owner delete.
func (l *Logger) ResourceDeleted(ctx context.Context, r *http.Request, actorID, resourceID primitive.ObjectID, title string) {
	l.resourceEvent(ctx, r, audit.EventResourceDeleted, actorID, resourceID, title)
}
