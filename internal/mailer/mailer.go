// Package mailer hands outbound messages to the SMTP relay. Transport
// details stay here; the send service only decides what to log about them.
package mailer

import (
	"gopkg.in/gomail.v2"

	"mailwatch/config"
)

type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(cfg *config.Config) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.SMTPFrom,
	}
}

func (m *Mailer) From() string {
	return m.from
}

func (m *Mailer) Send(to, subject, htmlBody string, headers map[string]string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	for name, value := range headers {
		msg.SetHeader(name, value)
	}
	msg.SetBody("text/html", htmlBody)

	return m.dialer.DialAndSend(msg)
}
