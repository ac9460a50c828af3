package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReconquistaDigital/MemberHub/app/models"
	"github.com/ReconquistaDigital/MemberHub/internal/pkg/mail"
	"github.com/ReconquistaDigital/MemberHub/internal/pkg/provisioning"
)

const testWebhookSecret = "test-shared-secret"

type webhookTestEnv struct {
	app       *fiber.App
	repo      *provisioning.MemoryRepository
	mailCount *int64
}

func newWebhookTestEnv(t *testing.T) *webhookTestEnv {
	t.Helper()
	t.Setenv("WEBHOOK_SHARED_SECRET", testWebhookSecret)
	t.Setenv("SITE_URL", "https://members.example.com")

	repo := provisioning.NewMemoryRepository()
	SetProvisioningService(provisioning.NewService(repo, nil))

	var mailCount int64
	mailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&mailCount, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	t.Cleanup(mailServer.Close)

	SetWebhookMailer(&mail.Mailer{
		APIKey:     "test-key",
		APIURL:     mailServer.URL,
		Sender:     "no-reply@members.example.com",
		HTTPClient: mailServer.Client(),
	})

	app := fiber.New()
	app.Post("/api/webhook/lojou", HandleLojouWebhook)
	app.Get("/auto-login", HandleAutoLogin)

	return &webhookTestEnv{app: app, repo: repo, mailCount: &mailCount}
}

func (e *webhookTestEnv) postWebhook(t *testing.T, payload []byte, signature string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/lojou", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Lojou-Signature", signature)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHandleLojouWebhook_EndToEnd(t *testing.T) {
	env := newWebhookTestEnv(t)

	payload := []byte(`{
		"transaction_id": "T1",
		"status": "approved",
		"customer": { "email": "Ana@Example.com", "name": "Ana Costa" },
		"product": { "code": "codigo_reconquista", "name": "Código da Reconquista" },
		"amount": 997,
		"fee": 89.73
	}`)
	sig := provisioning.SignWebhookPayload(payload, testWebhookSecret)

	resp := env.postWebhook(t, payload, sig)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])

	accounts := env.repo.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, "ana@example.com", accounts[0].Email)
	assert.Equal(t, "Ana Costa", accounts[0].Name)
	assert.True(t, accounts[0].HasFullAccess)

	purchases := env.repo.Purchases()
	require.Len(t, purchases, 1)
	assert.Equal(t, "T1", purchases[0].ProviderTransactionID)
	assert.Equal(t, "codigo-reconquista", purchases[0].ProductCode)
	assert.Equal(t, int64(99700), purchases[0].AmountCents)

	grants := env.repo.Grants()
	require.Len(t, grants, 1)
	assert.Equal(t, "codigo-reconquista", grants[0].EntitlementCode)
	assert.True(t, grants[0].Active)
	assert.Equal(t, &purchases[0].ID, grants[0].PurchaseID)

	tokens := env.repo.Tokens()
	require.Len(t, tokens, 1)
	assert.Nil(t, tokens[0].UsedAt)
	assert.WithinDuration(t, time.Now().Add(models.MagicLinkTokenTTL), tokens[0].ExpiresAt, time.Minute)

	events := env.repo.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Processed)
	assert.Empty(t, events[0].ErrorMessage)

	assert.Equal(t, int64(1), atomic.LoadInt64(env.mailCount))
}

func TestHandleLojouWebhook_InvalidSignature(t *testing.T) {
	env := newWebhookTestEnv(t)

	payload := []byte(`{"transaction_id":"T1","status":"approved","email":"ana@example.com"}`)
	staleSig := provisioning.SignWebhookPayload([]byte(`{"transaction_id":"T0"}`), testWebhookSecret)

	resp := env.postWebhook(t, payload, staleSig)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	assert.Empty(t, env.repo.Accounts())
	assert.Empty(t, env.repo.Purchases())
	assert.Empty(t, env.repo.Grants())

	// The audit row still exists, closed with the rejection note.
	events := env.repo.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Processed)
	assert.Contains(t, events[0].ErrorMessage, "signature")
}

func TestHandleLojouWebhook_UnapprovedStatusIgnored(t *testing.T) {
	env := newWebhookTestEnv(t)

	payload := []byte(`{"transaction_id":"T2","status":"pending","email":"ana@example.com","product":"codigo_reconquista"}`)
	resp := env.postWebhook(t, payload, provisioning.SignWebhookPayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Empty(t, env.repo.Accounts())
	assert.Empty(t, env.repo.Purchases())
	assert.Empty(t, env.repo.Grants())

	events := env.repo.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Processed)
	assert.Contains(t, events[0].ErrorMessage, "not approved")
	assert.Equal(t, int64(0), atomic.LoadInt64(env.mailCount))
}

func TestHandleLojouWebhook_DuplicateDelivery(t *testing.T) {
	env := newWebhookTestEnv(t)

	payload := []byte(`{"transaction_id":"T3","status":"approved","email":"ana@example.com","product":"codigo_reconquista","amount":997}`)
	sig := provisioning.SignWebhookPayload(payload, testWebhookSecret)

	first := env.postWebhook(t, payload, sig)
	assert.Equal(t, fiber.StatusOK, first.StatusCode)

	second := env.postWebhook(t, payload, sig)
	assert.Equal(t, fiber.StatusOK, second.StatusCode)
	body := decodeBody(t, second)
	assert.Equal(t, true, body["success"])

	assert.Len(t, env.repo.Accounts(), 1)
	assert.Len(t, env.repo.Purchases(), 1)
	assert.Len(t, env.repo.Grants(), 1)
	// One audit row per delivery, both closed.
	events := env.repo.Events()
	require.Len(t, events, 2)
	assert.True(t, events[1].Processed)
	assert.Contains(t, events[1].ErrorMessage, "duplicate")
	// Only the first delivery dispatches mail.
	assert.Equal(t, int64(1), atomic.LoadInt64(env.mailCount))
}

func TestHandleLojouWebhook_MissingEmail(t *testing.T) {
	env := newWebhookTestEnv(t)

	payload := []byte(`{"transaction_id":"T4","status":"approved","product":"codigo_reconquista"}`)
	resp := env.postWebhook(t, payload, provisioning.SignWebhookPayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, env.repo.Accounts())
	assert.Empty(t, env.repo.Purchases())

	events := env.repo.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Processed)
}

func TestHandleLojouWebhook_InvalidPayload(t *testing.T) {
	env := newWebhookTestEnv(t)

	payload := []byte(`{"status":"approved"}`)
	resp := env.postWebhook(t, payload, provisioning.SignWebhookPayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, env.repo.Accounts())
}

func TestHandleLojouWebhook_MailFailureIsNotFatal(t *testing.T) {
	env := newWebhookTestEnv(t)

	// Point the mailer at a server that always fails; no SMTP fallback is
	// configured either, so dispatch fails outright.
	failServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(failServer.Close)
	SetWebhookMailer(&mail.Mailer{
		APIKey:     "test-key",
		APIURL:     failServer.URL,
		Sender:     "no-reply@members.example.com",
		HTTPClient: failServer.Client(),
	})

	payload := []byte(`{"transaction_id":"T5","status":"approved","email":"ana@example.com","product":"codigo_reconquista"}`)
	resp := env.postWebhook(t, payload, provisioning.SignWebhookPayload(payload, testWebhookSecret))

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, env.repo.Purchases(), 1)
	assert.Len(t, env.repo.Grants(), 1)
}

func TestHandleAutoLogin_ConsumesTokenOnce(t *testing.T) {
	env := newWebhookTestEnv(t)

	payload := []byte(`{"transaction_id":"T6","status":"approved","email":"ana@example.com","name":"Ana","product":"codigo_reconquista"}`)
	resp := env.postWebhook(t, payload, provisioning.SignWebhookPayload(payload, testWebhookSecret))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	tokens := env.repo.Tokens()
	require.Len(t, tokens, 1)

	req := httptest.NewRequest(http.MethodGet, "/auto-login?token="+tokens[0].Token, nil)
	loginResp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, loginResp.StatusCode)
	body := decodeBody(t, loginResp)
	assert.Equal(t, true, body["success"])

	// Second redemption of the same token fails.
	req = httptest.NewRequest(http.MethodGet, "/auto-login?token="+tokens[0].Token, nil)
	replayResp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, replayResp.StatusCode)
}

func TestHandleAutoLogin_MissingToken(t *testing.T) {
	env := newWebhookTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auto-login", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
