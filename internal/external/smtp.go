package external

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"swellwatch/internal/types"
)

// SMTPProviderConfig holds the connection settings for SMTP delivery.
// This provider targets STARTTLS submission endpoints (port 587).
type SMTPProviderConfig struct {
	Host     string
	Port     int
	Username string
	Password types.SecretString
}

// SMTPProvider implements EmailProvider over plain SMTP with STARTTLS and
// AUTH PLAIN. It exists for deployments without SES access and builds a
// multipart/alternative message so both the text and HTML bodies travel in
// one email.
type SMTPProvider struct {
	cfg    SMTPProviderConfig
	sendFn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPProvider creates a new SMTPProvider.
func NewSMTPProvider(cfg SMTPProviderConfig) *SMTPProvider {
	return &SMTPProvider{
		cfg:    cfg,
		sendFn: smtp.SendMail,
	}
}

// boundary separates the text and HTML parts of the multipart body. A fixed
// boundary is safe here: bodies are base64-free plain text and markup that
// never contains the marker.
const boundary = "swellwatch-alt-7f3a9c"

// Send transmits the email via SMTP. Context cancellation is honored only
// between queueing and dialing; net/smtp does not support mid-transfer
// cancellation.
func (p *SMTPProvider) Send(ctx context.Context, input SendInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	msg := buildMIMEMessage(input)
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password.Unmask(), p.cfg.Host)

	if err := p.sendFn(addr, auth, fromHeaderAddr(input.From), []string{input.To}, msg); err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("SMTP delivery via %s failed: %v", p.cfg.Host, err),
			err,
		)
	}

	// SMTP has no provider message ID; the reference ID stands in.
	return input.ReferenceID, nil
}

// buildMIMEMessage assembles a multipart/alternative RFC 5322 message with
// the text part first and the HTML part last (clients pick the last part
// they can render).
func buildMIMEMessage(input SendInput) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", fromHeader(input.From))
	fmt.Fprintf(&b, "To: %s\r\n", input.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", input.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	if input.BodyHTML == "" {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(input.BodyText)
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(input.BodyText)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(input.BodyHTML)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

func fromHeader(a Address) string {
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", a.Name), a.Address)
	}
	return a.Address
}

// fromHeaderAddr is the envelope sender: bare address, no display name.
func fromHeaderAddr(a Address) string {
	return a.Address
}

// Compile-time assertion that SMTPProvider satisfies EmailProvider.
var _ EmailProvider = (*SMTPProvider)(nil)
