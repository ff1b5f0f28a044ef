package infrastructure

import (
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer sends transactional mail over SMTP. A nil Mailer is disabled.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer returns nil when SMTP_HOST is not set.
func NewMailer(cfg *Config) *Mailer {
	if cfg.SMTPHost == "" {
		return nil
	}
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   from,
	}
}

func (m *Mailer) Enabled() bool {
	return m != nil && m.dialer != nil
}

func (m *Mailer) Send(to, subject, body string) error {
	if !m.Enabled() {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		zap.L().Error("mail: send failed", zap.String("to", to), zap.Error(err))
		return err
	}
	return nil
}
