package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/smtp"
	"time"

	"github.com/ReconquistaDigital/MemberHub/internal/pkg/env"
)

const defaultEmailAPIURL = "https://api.resend.com/emails"

// Mailer delivers transactional mail through an HTTP email API, falling back
// to plain SMTP when no API key is configured or the API call fails. Mail is
// best-effort everywhere in this service: callers log failures and move on.
type Mailer struct {
	APIKey string
	APIURL string
	Sender string

	HTTPClient *http.Client
}

// NewMailerFromEnv builds a mailer from environment configuration.
func NewMailerFromEnv() *Mailer {
	sender := env.GetEnv("EMAIL_SENDER", "")
	if sender == "" {
		sender = env.GetEnv("SMTP_SENDER", "no-reply@localhost")
	}
	return &Mailer{
		APIKey: env.GetEnv("EMAIL_API_KEY", ""),
		APIURL: env.GetEnv("EMAIL_API_URL", defaultEmailAPIURL),
		Sender: sender,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send delivers one HTML email, trying the API first and SMTP second.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.APIKey != "" {
		err := m.sendViaAPI(ctx, to, subject, htmlBody)
		if err == nil {
			return nil
		}
		log.Printf("email API send to %s failed, trying SMTP fallback: %v", to, err)
	}
	return m.sendViaSMTP(to, subject, htmlBody)
}

func (m *Mailer) sendViaAPI(ctx context.Context, to, subject, htmlBody string) error {
	body, err := json.Marshal(map[string]interface{}{
		"from":    m.Sender,
		"to":      []string{to},
		"subject": subject,
		"html":    htmlBody,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.APIURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email API send failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (m *Mailer) sendViaSMTP(to, subject, htmlBody string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")

	if host == "" {
		return fmt.Errorf("no email delivery path configured for %s", to)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)
	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.Sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			htmlBody,
	)

	err := smtp.SendMail(addr, auth, m.Sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	}
	return err
}

// SendMagicLink emails a customer their single-use login link.
func (m *Mailer) SendMagicLink(ctx context.Context, to, name, magicLinkURL, productName string) error {
	if name == "" {
		name = "aluna"
	}
	subject := fmt.Sprintf("Seu acesso ao %s chegou!", productName)
	body := MagicLinkEmailBody(name, magicLinkURL, productName)
	return m.Send(ctx, to, subject, body)
}

// MagicLinkEmailBody renders the magic-link email HTML.
func MagicLinkEmailBody(name, magicLinkURL, productName string) string {
	return fmt.Sprintf(`<html><body>
<p>Oi %s,</p>
<p>Seu pagamento foi confirmado e seu acesso ao <strong>%s</strong> está liberado.</p>
<p><a href="%s">Clique aqui para entrar na área de membros</a></p>
<p>O link é pessoal, funciona uma única vez e expira em 7 dias. Se expirar, é só pedir um novo na página de login.</p>
</body></html>`, name, productName, magicLinkURL)
}
