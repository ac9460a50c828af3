package provisioning

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ParseLojouWebhookPayload normalizes a Lojou payment notification. Lojou
// payloads are not stable across checkout versions: identifiers, customer
// data and money fields appear under several alternative names, and the
// customer block may be inlined or nested. All of that tolerance lives here
// so the rest of the pipeline only ever sees NormalizedPayment.
func ParseLojouWebhookPayload(payload []byte) (*NormalizedPayment, error) {
	type rawCustomer struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
		Whatsapp string `json:"whatsapp"`
	}
	type rawProduct struct {
		Code string `json:"code"`
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	type rawPayload struct {
		TransactionID string `json:"transaction_id"`
		Transaction   string `json:"transaction"`
		OrderID       string `json:"order_id"`

		Status        string `json:"status"`
		PaymentStatus string `json:"payment_status"`

		Email      string      `json:"email"`
		BuyerEmail string      `json:"buyer_email"`
		Name       string      `json:"name"`
		Phone      string      `json:"phone"`
		Whatsapp   string      `json:"whatsapp"`
		Customer   rawCustomer `json:"customer"`

		Product     json.RawMessage `json:"product"`
		ProductID   string          `json:"product_id"`
		ProductName string          `json:"product_name"`

		Amount     json.RawMessage `json:"amount"`
		Price      json.RawMessage `json:"price"`
		Total      json.RawMessage `json:"total"`
		Fee        json.RawMessage `json:"fee"`
		Commission json.RawMessage `json:"commission"`
	}

	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	out := &NormalizedPayment{Provider: "lojou"}

	out.TransactionID = firstNonEmpty(raw.TransactionID, raw.Transaction, raw.OrderID)
	if out.TransactionID == "" {
		return nil, errors.New("lojou webhook payload missing transaction id")
	}

	out.Status = strings.ToLower(firstNonEmpty(raw.Status, raw.PaymentStatus))
	out.CustomerEmail = firstNonEmpty(raw.Customer.Email, raw.Email, raw.BuyerEmail)
	out.CustomerName = firstNonEmpty(raw.Customer.Name, raw.Customer.FullName, raw.Name)
	out.CustomerPhone = firstNonEmpty(raw.Customer.Phone, raw.Customer.Whatsapp, raw.Phone, raw.Whatsapp)

	code, name := parseProductField(raw.Product)
	out.ProductCode = firstNonEmpty(code, raw.ProductID, raw.ProductName)
	out.ProductName = firstNonEmpty(name, raw.ProductName, out.ProductCode)

	out.AmountCents = moneyToCents(firstNonEmptyRaw(raw.Amount, raw.Price, raw.Total))
	out.FeeCents = moneyToCents(firstNonEmptyRaw(raw.Fee, raw.Commission))

	return out, nil
}

// IsApprovedPaymentStatus reports whether a provider status string means the
// payment went through. Lojou emits both English and Portuguese variants.
func IsApprovedPaymentStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved", "aprovado", "paid", "pago", "completed":
		return true
	default:
		return false
	}
}

func parseProductField(raw json.RawMessage) (code, name string) {
	if len(raw) == 0 {
		return "", ""
	}
	var obj struct {
		Code string `json:"code"`
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return firstNonEmpty(obj.Code, obj.ID), strings.TrimSpace(obj.Name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), ""
	}
	return "", ""
}

// moneyToCents accepts a JSON number or numeric string in currency units
// ("997", 997.5, "997.00") and converts to integer cents.
func moneyToCents(raw json.RawMessage) int64 {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	if s == "" || s == "null" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

func firstNonEmptyRaw(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}
