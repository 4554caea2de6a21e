package email

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/vpportal/vpportal/shared/config"
	"github.com/vpportal/vpportal/shared/errors"
	"github.com/vpportal/vpportal/shared/logger"
)

var errInvalidAddress = errors.BadRequest("Please provide a valid email address")

// IsCorrect accepts bare addresses only ("a@b.c", not "A <a@b.c>").
func IsCorrect(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return errInvalidAddress
	}
	return nil
}

// Email delivers messages over SMTP.
type Email struct {
	config     *config.Email
	senderName string
	auth       smtp.Auth
}

func New(config *config.Email, senderName string) *Email {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.SMTPServer)
	return &Email{
		config:     config,
		senderName: senderName,
		auth:       auth,
	}
}

func (e *Email) IsCorrect(email string) error {
	return IsCorrect(email)
}

// Send renders body (Markdown) and delivers it to recipientEmail.
func (e *Email) Send(recipientEmail, subject, body string) error {
	msg, err := Compose(Envelope{
		From:       e.config.Username,
		SenderName: e.senderName,
		To:         recipientEmail,
		Subject:    subject,
	}, body)
	if err != nil {
		return err
	}
	address := fmt.Sprintf("%s:%d", e.config.SMTPServer, e.config.SMTPPort)

	// Port 465 = implicit TLS, otherwise STARTTLS
	if e.config.SMTPPort == 465 {
		return e.sendImplicitTLS(address, recipientEmail, msg)
	}
	return e.sendSTARTTLS(address, recipientEmail, msg)
}

func (e *Email) timeout() time.Duration {
	timeout := time.Duration(e.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return timeout
}

func (e *Email) sendImplicitTLS(address, recipientEmail string, msg []byte) error {
	tlsConfig := &tls.Config{ServerName: e.config.SMTPServer}

	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: e.timeout()}, "tcp", address, tlsConfig)
	if err != nil {
		logger.Log.Error("failed to connect to SMTP server (implicit TLS)", "address", address, "error", err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.config.SMTPServer)
	if err != nil {
		logger.Log.Error("failed to create SMTP client", "error", err)
		return err
	}
	defer client.Close()

	return e.sendViaClient(client, recipientEmail, msg)
}

func (e *Email) sendSTARTTLS(address, recipientEmail string, msg []byte) error {
	conn, err := net.DialTimeout("tcp", address, e.timeout())
	if err != nil {
		logger.Log.Error("failed to connect to SMTP server", "address", address, "error", err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.config.SMTPServer)
	if err != nil {
		logger.Log.Error("failed to create SMTP client", "error", err)
		return err
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: e.config.SMTPServer}); err != nil {
		logger.Log.Error("failed to start TLS", "error", err)
		return err
	}

	return e.sendViaClient(client, recipientEmail, msg)
}

func (e *Email) sendViaClient(client *smtp.Client, recipientEmail string, msg []byte) error {
	if err := client.Auth(e.auth); err != nil {
		logger.Log.Error("SMTP authentication failed", "error", err)
		return err
	}
	if err := client.Mail(e.config.Username); err != nil {
		logger.Log.Error("failed to set sender", "error", err)
		return err
	}
	if err := client.Rcpt(recipientEmail); err != nil {
		logger.Log.Error("failed to set recipient", "recipient", recipientEmail, "error", err)
		return err
	}

	w, err := client.Data()
	if err != nil {
		logger.Log.Error("failed to get data writer", "error", err)
		return err
	}
	if _, err = w.Write(msg); err != nil {
		logger.Log.Error("failed to write message", "error", err)
		return err
	}
	if err = w.Close(); err != nil {
		logger.Log.Error("failed to close data writer", "error", err)
		return err
	}

	return client.Quit()
}

// Log writes messages to the log instead of delivering them. Development
// only: the body contains OTPs and reset links.
type Log struct{}

func (Log) IsCorrect(email string) error {
	return IsCorrect(email)
}

func (Log) Send(recipientEmail, subject, body string) error {
	logger.Component("mail").Info("email not delivered (log driver)",
		"to", recipientEmail,
		"subject", subject,
		"body", strings.TrimSpace(body),
	)
	return nil
}
