package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"
)

// EmailSender delivers a single message. Implementations are selected by
// configuration; the console sender is the default outside production.
type EmailSender interface {
	Send(to, subject, body string) error
}

type ConsoleSender struct{}

func (ConsoleSender) Send(to, subject, body string) error {
	slog.Info("email (console)",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

type SMTPSender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (s *SMTPSender) Send(to, subject, body string) error {
	message := []byte("To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	if err := smtp.SendMail(s.Host+":"+s.Port, auth, s.From, []string{to}, message); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
