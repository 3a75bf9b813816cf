package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig holds the settings for the SMTP-backed notifier.
type SMTPConfig struct {
	Host     string // e.g. "smtp.example.com"
	Port     int    // e.g. 587
	From     string // sender address, also used as the auth identity
	Password string
	Subject  string // defaults to "[authgate] Confirmation code"
}

// SMTPNotifier delivers codes by email over authenticated SMTP.
type SMTPNotifier struct {
	cfg  SMTPConfig
	addr string
	auth smtp.Auth

	// sendMail is swappable in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Subject == "" {
		cfg.Subject = "[authgate] Confirmation code"
	}
	return &SMTPNotifier{
		cfg:      cfg,
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth:     smtp.PlainAuth("", cfg.From, cfg.Password, cfg.Host),
		sendMail: smtp.SendMail,
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, email, code string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", n.cfg.Subject)
	msg.WriteString("\r\n")
	fmt.Fprintf(&msg, "Here is your code: %s\r\n", code)

	if err := n.sendMail(n.addr, n.auth, n.cfg.From, []string{email}, []byte(msg.String())); err != nil {
		return fmt.Errorf("notify: smtp send failed: %w", err)
	}
	return nil
}
