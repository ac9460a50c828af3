package provisioning

import "testing"

func TestParseLojouWebhookPayload_NestedCustomer(t *testing.T) {
	raw := []byte(`{
		"transaction_id": "T1",
		"status": "approved",
		"customer": { "email": "Ana@Example.com", "name": "Ana Costa", "whatsapp": "+5511999990000" },
		"product": { "code": "codigo_reconquista", "name": "Código da Reconquista" },
		"amount": 997,
		"fee": 89.73
	}`)

	p, err := ParseLojouWebhookPayload(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if p.TransactionID != "T1" {
		t.Fatalf("unexpected transaction id: %q", p.TransactionID)
	}
	if p.CustomerEmail != "Ana@Example.com" || p.CustomerName != "Ana Costa" {
		t.Fatalf("unexpected customer: %q %q", p.CustomerEmail, p.CustomerName)
	}
	if p.CustomerPhone != "+5511999990000" {
		t.Fatalf("unexpected phone: %q", p.CustomerPhone)
	}
	if p.ProductCode != "codigo_reconquista" || p.ProductName != "Código da Reconquista" {
		t.Fatalf("unexpected product: %q %q", p.ProductCode, p.ProductName)
	}
	if p.AmountCents != 99700 {
		t.Fatalf("expected 99700 cents, got %d", p.AmountCents)
	}
	if p.FeeCents != 8973 {
		t.Fatalf("expected 8973 fee cents, got %d", p.FeeCents)
	}
}

func TestParseLojouWebhookPayload_FlatAlternativeFields(t *testing.T) {
	raw := []byte(`{
		"order_id": "O-9",
		"payment_status": "PAGO",
		"buyer_email": "joao@example.com",
		"name": "João",
		"phone": "+5511888880000",
		"product_id": "reconquista_express",
		"price": "197.00",
		"commission": "17.73"
	}`)

	p, err := ParseLojouWebhookPayload(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if p.TransactionID != "O-9" {
		t.Fatalf("unexpected transaction id: %q", p.TransactionID)
	}
	if p.Status != "pago" {
		t.Fatalf("unexpected status: %q", p.Status)
	}
	if p.CustomerEmail != "joao@example.com" || p.CustomerPhone != "+5511888880000" {
		t.Fatalf("unexpected customer fields: %q %q", p.CustomerEmail, p.CustomerPhone)
	}
	if p.ProductCode != "reconquista_express" {
		t.Fatalf("unexpected product code: %q", p.ProductCode)
	}
	if p.AmountCents != 19700 || p.FeeCents != 1773 {
		t.Fatalf("unexpected money: %d %d", p.AmountCents, p.FeeCents)
	}
}

func TestParseLojouWebhookPayload_ProductAsString(t *testing.T) {
	p, err := ParseLojouWebhookPayload([]byte(`{"transaction_id":"T2","status":"approved","email":"a@b.co","product":"codigo_reconquista"}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if p.ProductCode != "codigo_reconquista" {
		t.Fatalf("unexpected product code: %q", p.ProductCode)
	}
}

func TestParseLojouWebhookPayload_MissingTransactionID(t *testing.T) {
	if _, err := ParseLojouWebhookPayload([]byte(`{"status":"approved","email":"a@b.co"}`)); err == nil {
		t.Fatalf("expected error for payload without transaction id")
	}
}

func TestParseLojouWebhookPayload_InvalidJSON(t *testing.T) {
	if _, err := ParseLojouWebhookPayload([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestIsApprovedPaymentStatus(t *testing.T) {
	for _, status := range []string{"approved", "Aprovado", "paid", "PAGO", "completed"} {
		if !IsApprovedPaymentStatus(status) {
			t.Fatalf("expected status %q to be approved", status)
		}
	}
	for _, status := range []string{"pending", "refused", "refunded", "chargeback", ""} {
		if IsApprovedPaymentStatus(status) {
			t.Fatalf("expected status %q to be non-approved", status)
		}
	}
}
