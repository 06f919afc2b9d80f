// Package services provides external service integrations like notification
// delivery channels.
package services

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"

	"github.com/tenderintel/tender-intel/app/metrics"
	"gopkg.in/gomail.v2"
)

// SMTPEmailDeliverer sends notification emails over SMTP.
type SMTPEmailDeliverer struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

func NewSMTPEmailDeliverer(host string, port int, username, password, fromEmail, fromName string) *SMTPEmailDeliverer {
	return &SMTPEmailDeliverer{
		dialer:    gomail.NewDialer(host, port, username, password),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// SendEmail delivers one notification email. The context is honored before
// dialing; gomail itself does not support cancellation mid-send.
func (d *SMTPEmailDeliverer) SendEmail(ctx context.Context, to, subject, body string) error {
	if !strings.Contains(to, "@") {
		return fmt.Errorf("invalid email address: %s", to)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", d.fromEmail, d.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := d.dialer.DialAndSend(m); err != nil {
		metrics.NotificationsFailed.WithLabelValues("email").Inc()
		return fmt.Errorf("sending email to %s: %w", to, err)
	}
	metrics.NotificationsSent.WithLabelValues("email").Inc()
	return nil
}

// NotifySendDeliverer raises desktop notifications through notify-send,
// available on Linux desktops with libnotify.
type NotifySendDeliverer struct {
	binary string
}

func NewNotifySendDeliverer() *NotifySendDeliverer {
	return &NotifySendDeliverer{binary: "notify-send"}
}

// SendDesktop shows a desktop notification.
func (d *NotifySendDeliverer) SendDesktop(ctx context.Context, title, message string) error {
	if _, err := exec.LookPath(d.binary); err != nil {
		metrics.NotificationsFailed.WithLabelValues("desktop").Inc()
		return fmt.Errorf("desktop notifications unavailable: %w", err)
	}

	cmd := exec.CommandContext(ctx, d.binary, "--app-name=tender-intel", title, message)
	if err := cmd.Run(); err != nil {
		metrics.NotificationsFailed.WithLabelValues("desktop").Inc()
		return fmt.Errorf("raising desktop notification: %w", err)
	}
	metrics.NotificationsSent.WithLabelValues("desktop").Inc()
	return nil
}

type MockEmailDeliverer struct{}

func NewMockEmailDeliverer() *MockEmailDeliverer {
	return &MockEmailDeliverer{}
}

func (d *MockEmailDeliverer) SendEmail(ctx context.Context, to, subject, body string) error {
	log.Printf("Email sent to %s [%s]: %s", to, subject, body)
	return nil
}

type MockDesktopDeliverer struct{}

func NewMockDesktopDeliverer() *MockDesktopDeliverer {
	return &MockDesktopDeliverer{}
}

func (d *MockDesktopDeliverer) SendDesktop(ctx context.Context, title, message string) error {
	log.Printf("Desktop notification [%s]: %s", title, message)
	return nil
}
