// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/email"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by Send when no SMTP host is set.
var ErrNotConfigured = errors.New("mailer: smtp host not configured")

// Email is a single outgoing message.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// Sender delivers an Email. Handlers depend on this so tests can capture mail.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// transport is the part of *email.Sender the Mailer uses.
type transport interface {
	SendHTML(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// Mailer sends email over SMTP through WAFFLE's email sender.
type Mailer struct {
	host   string
	smtp   transport
	logger *zap.Logger
}

// New returns a Mailer. A blank Host makes Send return ErrNotConfigured.
// Port 465 uses implicit TLS; any other port requires STARTTLS.
func New(cfg Config, logger *zap.Logger) *Mailer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		host: cfg.Host,
		smtp: email.NewSender(email.Config{
			Host:        cfg.Host,
			Port:        cfg.Port,
			Username:    cfg.User,
			Password:    cfg.Password,
			FromAddress: cfg.From,
			FromName:    cfg.FromName,
			UseSSL:      cfg.Port == 465,
			Timeout:     cfg.Timeout,
		}),
		logger: logger,
	}
}

// Send delivers e.
func (m *Mailer) Send(ctx context.Context, e Email) error {
	if m.host == "" {
		return ErrNotConfigured
	}
	if strings.TrimSpace(e.To) == "" {
		return errors.New("mailer: recipient is required")
	}
	if err := m.smtp.SendHTML(ctx, e.To, e.Subject, e.TextBody, e.HTMLBody); err != nil {
		return err
	}
	m.logger.Debug("email sent", zap.String("to", e.To), zap.String("subject", e.Subject))
	return nil
}
