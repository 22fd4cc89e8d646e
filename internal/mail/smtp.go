package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"accountd/internal/service"
)

type SMTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
	FromName string
}

// SMTPMailer delivers over SMTP with STARTTLS. Connection and session share
// one deadline so a stalled server cannot hang the request.
type SMTPMailer struct {
	cfg      SMTPConfig
	renderer service.TemplateRenderer
	timeout  time.Duration
}

func NewSMTPMailer(cfg SMTPConfig, renderer service.TemplateRenderer) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, renderer: renderer, timeout: 15 * time.Second}
}

func (m *SMTPMailer) SendVerification(ctx context.Context, to, code string) error {
	return m.send(ctx, to, TemplateVerification, code)
}

func (m *SMTPMailer) SendPasswordRestore(ctx context.Context, to, code string) error {
	return m.send(ctx, to, TemplateRestorePassword, code)
}

func (m *SMTPMailer) send(ctx context.Context, to, tmpl, code string) error {
	body, err := m.renderer.Render(tmpl, map[string]string{"Code": code})
	if err != nil {
		return err
	}

	fromHeader := m.cfg.From
	if m.cfg.FromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}
	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", Subject(tmpl)),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	return m.deliver(ctx, to, []byte(msg))
}

func (m *SMTPMailer) deliver(ctx context.Context, to string, msg []byte) error {
	host, _, err := net.SplitHostPort(m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("smtp addr: %w", err)
	}

	d := net.Dialer{Timeout: m.timeout}
	conn, err := d.DialContext(ctx, "tcp", m.cfg.Addr)
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Now().Add(m.timeout))

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
