package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SMTPMailer sends over SMTP with implicit TLS on port 465 and STARTTLS
// otherwise when the server offers it.
type SMTPMailer struct {
	Host     string
	Port     int
	User     string
	Password string
	Timeout  time.Duration
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	if m.Host == "" || m.Port <= 0 {
		return "", errors.New("smtp not configured")
	}
	fromAddr := extractEmail(msg.From)
	toAddr := strings.TrimSpace(msg.To)
	msgID := "<" + uuid.NewString() + "@" + domainOf(fromAddr) + ">"

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := m.dial(ctx)
	if err != nil {
		return "", err
	}
	defer c.Close()

	if m.User != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", m.User, m.Password, m.Host)); err != nil {
				return "", fmt.Errorf("auth: %w", err)
			}
		}
	}
	if err := c.Mail(fromAddr); err != nil {
		return "", fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(toAddr); err != nil {
		return "", fmt.Errorf("rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return "", fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(buildMIME(msg, msgID)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close: %w", err)
	}
	if err := c.Quit(); err != nil {
		return "", fmt.Errorf("quit: %w", err)
	}
	return msgID, nil
}

func (m *SMTPMailer) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	tlsCfg := &tls.Config{ServerName: m.Host}
	if m.Port == 465 {
		conn, err := (&tls.Dialer{Config: tlsCfg}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial tls: %w", err)
		}
		return newSMTPClient(ctx, conn, m.Host)
	}
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	c, err := newSMTPClient(ctx, conn, m.Host)
	if err != nil {
		return nil, err
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(tlsCfg); err != nil {
			c.Close()
			return nil, fmt.Errorf("starttls: %w", err)
		}
	}
	return c, nil
}

func newSMTPClient(ctx context.Context, conn net.Conn, host string) (*smtp.Client, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: %w", err)
	}
	return c, nil
}

func buildMIME(msg Message, msgID string) []byte {
	var body bytes.Buffer
	qp := quotedprintable.NewWriter(&body)
	_, _ = qp.Write([]byte(msg.HTML))
	_ = qp.Close()
	return []byte("From: " + msg.From + "\r\n" +
		"To: " + msg.To + "\r\n" +
		"Subject: " + mime.QEncoding.Encode("UTF-8", msg.Subject) + "\r\n" +
		"Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n" +
		"Message-ID: " + msgID + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" + body.String())
}

func extractEmail(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "<"); i >= 0 {
		if j := strings.Index(s, ">"); j > i {
			return strings.TrimSpace(s[i+1 : j])
		}
	}
	return s
}

func domainOf(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 && i+1 < len(email) {
		return strings.TrimSpace(email[i+1:])
	}
	return "localhost"
}

const resendEndpoint = "https://api.resend.com/emails"

// ResendMailer sends through the Resend HTTP API.
type ResendMailer struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
}

func NewResend(apiKey string) *ResendMailer {
	return &ResendMailer{
		APIKey:   apiKey,
		Endpoint: resendEndpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (r *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	body, _ := json.Marshal(resendPayload{From: msg.From, To: []string{msg.To}, Subject: msg.Subject, HTML: msg.HTML})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+r.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("resend: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("resend: decode response: %w", err)
	}
	return out.ID, nil
}

// LogMailer writes messages to the log instead of sending them. Used when no
// mail transport is configured.
type LogMailer struct {
	Log *zap.Logger
}

func (l LogMailer) Send(ctx context.Context, msg Message) (string, error) {
	id := "log-" + uuid.NewString()
	l.Log.Info("mail_logged",
		zap.String("message_id", id),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return id, nil
}
