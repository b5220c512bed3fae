package notifications

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"net/smtp"
	"regexp"
	"strings"
	"time"
)

// headerPattern matches common email header injection patterns.
var headerPattern = regexp.MustCompile(`(?i)\b(bcc|cc|to|from|subject|reply-to|x-[a-z0-9-]+)\s*:`)

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host string
	Port int

	// Username and Password enable PLAIN auth when Username is set.
	Username string
	Password string
}

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	SMTP SMTPConfig

	// From is the sender email address.
	From string

	// To is the list of recipient email addresses.
	To []string

	// Events limits which event types are sent. Empty sends all.
	Events []string
}

// SMTPSendFunc is the function signature for sending emails via SMTP.
type SMTPSendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailProvider mails run summaries as multipart text and HTML.
type EmailProvider struct {
	config     EmailConfig
	smtpSender SMTPSendFunc
	now        func() time.Time
}

// NewEmailProvider creates a new email notification provider.
func NewEmailProvider(config EmailConfig) *EmailProvider {
	return &EmailProvider{
		config:     config,
		smtpSender: smtp.SendMail,
		now:        time.Now,
	}
}

// Name returns the provider name.
func (p *EmailProvider) Name() string {
	return "email"
}

// SupportsEvent returns true if this provider handles the given event type.
func (p *EmailProvider) SupportsEvent(eventType EventType) bool {
	return supportsEvent(p.config.Events, eventType)
}

// Validate checks if the provider configuration is valid.
func (p *EmailProvider) Validate(ctx context.Context) error {
	if p.config.SMTP.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if p.config.SMTP.Port <= 0 {
		return fmt.Errorf("SMTP port is required")
	}
	if _, err := mail.ParseAddress(p.config.From); err != nil {
		return fmt.Errorf("invalid from address %q", p.config.From)
	}
	if len(p.config.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for _, to := range p.config.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("invalid recipient %q", to)
		}
	}
	return nil
}

// Send mails the event. net/smtp has no context support, so ctx is only
// checked before dialing.
func (p *EmailProvider) Send(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := p.buildMIMEMessage(event)
	if err != nil {
		return fmt.Errorf("failed to build email: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", p.config.SMTP.Host, p.config.SMTP.Port)

	var auth smtp.Auth
	if p.config.SMTP.Username != "" {
		auth = smtp.PlainAuth("", p.config.SMTP.Username, p.config.SMTP.Password, p.config.SMTP.Host)
	}

	if err := p.smtpSender(addr, auth, p.config.From, p.config.To, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// buildMIMEMessage creates a multipart/alternative message with plain-text
// and HTML parts.
func (p *EmailProvider) buildMIMEMessage(event Event) ([]byte, error) {
	text, html, err := renderSummary(event)
	if err != nil {
		return nil, err
	}

	boundary := fmt.Sprintf("----=_Part_%d", p.now().UnixNano())

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", p.config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(p.config.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", p.subject(event))
	fmt.Fprintf(&buf, "Date: %s\r\n", p.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	buf.WriteString("\r\n")

	writePart(&buf, boundary, "text/plain", text)
	writePart(&buf, boundary, "text/html", html)
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes(), nil
}

func writePart(buf *bytes.Buffer, boundary, contentType, body string) {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	fmt.Fprintf(buf, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	buf.WriteString("\r\n")
}

func (p *EmailProvider) subject(event Event) string {
	return "[tierup] " + sanitizeHeader(title(event))
}

// sanitizeHeader removes newlines and header injection patterns.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = headerPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
