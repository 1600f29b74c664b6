// Package mailer delivers alert email for user-alert and email-alert
// actions. Delivery is plain SMTP with a flood limiter so a flapping rule
// cannot bury an operator's inbox.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/vigil/errors"
)

// Config is the SMTP delivery configuration.
type Config struct {
	Server    string // SMTP host
	Port      int    // SMTP port (default 25)
	From      string // envelope and header sender
	DefaultTo string // recipient when an alert names none

	// MaxPerMinute caps outgoing alerts; beyond it alerts are dropped
	// with a log rather than queued (default 6).
	MaxPerMinute int
}

// Mailer sends alert mail. Safe for concurrent use.
type Mailer struct {
	cfg     Config
	log     *zap.SugaredLogger
	limiter *rate.Limiter

	// send is injectable for tests.
	send func(addr, from string, to []string, msg []byte) error
}

// New builds a mailer from config. A nil logger is replaced by a no-op.
func New(cfg Config, log *zap.SugaredLogger) *Mailer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	if cfg.MaxPerMinute <= 0 {
		cfg.MaxPerMinute = 6
	}
	return &Mailer{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.MaxPerMinute)), cfg.MaxPerMinute),
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// SetDefaultRecipient updates the fallback recipient used for alerts sent
// without an explicit address.
func (m *Mailer) SetDefaultRecipient(to string) {
	m.cfg.DefaultTo = to
}

// SendAlert delivers one alert. An empty recipient falls back to the
// configured default; with neither the alert is dropped with a log.
func (m *Mailer) SendAlert(to, subject, body string) error {
	if to == "" {
		to = m.cfg.DefaultTo
	}
	if to == "" || m.cfg.Server == "" {
		m.log.Infow("alert mail dropped, no recipient or server configured",
			"subject", subject)
		return nil
	}
	if !m.limiter.Allow() {
		m.log.Warnw("alert mail rate limit exceeded, dropping",
			"to", to, "subject", subject)
		return errors.New("alert mail rate limit exceeded")
	}

	msg := buildMessage(m.cfg.From, to, subject, body)
	addr := fmt.Sprintf("%s:%d", m.cfg.Server, m.cfg.Port)
	if err := m.send(addr, m.cfg.From, []string{to}, msg); err != nil {
		return errors.Wrapf(err, "failed to send alert to %s", to)
	}
	m.log.Infow("alert mail sent", "to", to, "subject", subject)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
