package alerting

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// EmailOptions configure SMTP delivery.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// EmailNotifier sends alerts over SMTP with STARTTLS.
type EmailNotifier struct {
	opts   EmailOptions
	logger zerolog.Logger
	send   func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier constructs an SMTP notifier.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		opts:   opts,
		logger: logger.With().Str("component", "alert_email").Logger(),
		send:   smtp.SendMail,
	}
}

// Notify sends the alert as a plain-text message.
func (n *EmailNotifier) Notify(ctx context.Context, note Notification) error {
	if n.opts.Host == "" || n.opts.From == "" || len(n.opts.To) == 0 {
		return fmt.Errorf("smtp host, from, and to are required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("%s %s Alert - %s", note.Symbol, note.Action, note.Date.Format("2006-01-02"))

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("From: %s\r\n", n.opts.From))
	builder.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(n.opts.To, ", ")))
	builder.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	builder.WriteString("\r\n")
	builder.WriteString(renderMessage(note))
	builder.WriteString("\r\n")

	addr := fmt.Sprintf("%s:%d", n.opts.Host, n.opts.Port)
	var auth smtp.Auth
	if n.opts.Username != "" {
		auth = smtp.PlainAuth("", n.opts.Username, n.opts.Password, n.opts.Host)
	}

	if err := n.send(addr, auth, n.opts.From, n.opts.To, []byte(builder.String())); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info().Str("action", note.Action).
		Str("date", note.Date.Format("2006-01-02")).
		Int("recipients", len(n.opts.To)).
		Msg("alert dispatched (email)")
	return nil
}

var _ Notifier = (*EmailNotifier)(nil)
