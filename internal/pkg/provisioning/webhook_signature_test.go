package provisioning

import "testing"

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"transaction_id":"T1"}`)
	secret := "top-secret"

	validSig := SignWebhookPayload(payload, secret)

	if !VerifyWebhookSignature(payload, validSig, secret) {
		t.Fatalf("expected signature to validate")
	}
	if !VerifyWebhookSignature(payload, "sha256="+validSig, secret) {
		t.Fatalf("expected prefixed signature to validate")
	}
	if VerifyWebhookSignature(payload, "deadbeef", secret) {
		t.Fatalf("expected invalid signature to fail")
	}
	if VerifyWebhookSignature([]byte(`{"transaction_id":"T2"}`), validSig, secret) {
		t.Fatalf("expected tampered body to fail")
	}
	if VerifyWebhookSignature(payload, validSig, "other-secret") {
		t.Fatalf("expected wrong secret to fail")
	}
	if VerifyWebhookSignature(payload, "", secret) {
		t.Fatalf("expected empty signature to fail")
	}
	if VerifyWebhookSignature(payload, "not-hex!", secret) {
		t.Fatalf("expected non-hex signature to fail")
	}
}
