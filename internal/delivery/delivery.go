// Package delivery emails a signed permit to the fixed recipient. One
// synchronous SMTP attempt per submission: dial with a timeout, STARTTLS,
// authenticate, send, quit. There is no pooling, retry, or queuing; any
// transport, authentication, or protocol error is surfaced to the caller
// and the submission fails without partial side effects.
package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config carries the externally supplied transport settings. Credentials
// come from the environment, never from source.
type Config struct {
	Host      string        `json:"host"`
	Port      int           `json:"port"`
	Username  string        `json:"username"`
	Password  string        `json:"password"`
	FromName  string        `json:"from_name"`
	Recipient string        `json:"recipient"`
	Timeout   time.Duration `json:"timeout"`
}

const (
	subject = "Signed Hunting Permit"

	defaultTimeout = 30 * time.Second
)

// Mailer sends signed documents as email attachments.
type Mailer struct {
	cfg    Config
	logger *zap.Logger
}

// NewMailer returns a Mailer for the given transport configuration.
func NewMailer(cfg Config, logger *zap.Logger) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.FromName == "" {
		cfg.FromName = "Permit Signing"
	}
	return &Mailer{cfg: cfg, logger: logger}
}

// Send transmits attachment as a single application/pdf part to the
// configured recipient, with a plaintext body naming the signer.
func (m *Mailer) Send(ctx context.Context, attachment []byte, filename, signerName string) error {
	msg := m.buildMessage(attachment, filename, signerName)

	m.logger.Info("Sending signed permit",
		zap.String("recipient", m.cfg.Recipient),
		zap.String("signer", signerName),
		zap.Int("attachment_bytes", len(attachment)))

	if err := m.transmit(ctx, msg); err != nil {
		m.logger.Error("Failed to send signed permit",
			zap.Error(err),
			zap.String("recipient", m.cfg.Recipient))
		return err
	}

	m.logger.Info("Signed permit sent", zap.String("recipient", m.cfg.Recipient))
	return nil
}

// transmit runs the single connect-STARTTLS-auth-send-quit sequence. The
// dial and every subsequent read/write share one deadline so a stalled
// server cannot block a submission indefinitely.
func (m *Mailer) transmit(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	dialer := net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Now().Add(m.cfg.Timeout)); err != nil {
		conn.Close()
		return fmt.Errorf("set transport deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := client.Mail(m.cfg.Username); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(m.cfg.Recipient); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	return client.Quit()
}

// buildMessage assembles the multipart MIME message: a plaintext body
// naming the signer plus one base64-encoded PDF attachment.
func (m *Mailer) buildMessage(attachment []byte, filename, signerName string) []byte {
	var buf bytes.Buffer
	boundary := "----=_Part_0_1234567890"

	buf.WriteString(fmt.Sprintf("From: %s <%s>\r\n", m.cfg.FromName, m.cfg.Username))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", m.cfg.Recipient))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(fmt.Sprintf("Hello,\r\n\r\nAttached is the hunting permit signed by:\r\n\r\n%s\r\n\r\nRegards,\r\nPermit Signing Portal\r\n", signerName))
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString(fmt.Sprintf("Content-Type: application/pdf; name=\"%s\"\r\n", filename))
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	buf.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", filename))
	buf.WriteString("\r\n")
	writeBase64(&buf, attachment)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}

// writeBase64 encodes data in 76-column lines per RFC 2045.
func writeBase64(buf *bytes.Buffer, data []byte) {
	const lineLen = 76
	encoded := base64.StdEncoding.EncodeToString(data)
	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		buf.WriteString(encoded[i:end])
		buf.WriteString("\r\n")
	}
}
