package payfast

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	liveProcessURL    = "https://www.payfast.co.za/eng/process"
	sandboxProcessURL = "https://sandbox.payfast.co.za/eng/process"
)

// Config carries the merchant identity and callback base for building
// outbound payment requests.
type Config struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	BaseURL     string
	Sandbox     bool
}

// ProcessURL returns the hosted payment page the buyer's browser posts to.
func (c Config) ProcessURL() string {
	if c.Sandbox {
		return sandboxProcessURL
	}
	return liveProcessURL
}

// PaymentRequest is the order data needed to build the gateway form.
type PaymentRequest struct {
	OrderID    string
	Token      string
	Amount     float64
	ItemName   string
	BuyerID    uint
	BuyerName  string
	BuyerEmail string
	ProductIDs []uint
}

// BuildForm produces the complete signed field set for the auto-submitting
// payment form. The return URL embeds both the order id and the access token,
// m_payment_id ties the eventual notification back to our order.
func (c Config) BuildForm(r PaymentRequest) map[string]string {
	first, last := splitName(r.BuyerName)
	ids, _ := json.Marshal(r.ProductIDs)

	fields := map[string]string{
		"merchant_id":      c.MerchantID,
		"merchant_key":     c.MerchantKey,
		"return_url":       fmt.Sprintf("%s/success?order=%s&token=%s", c.BaseURL, r.OrderID, r.Token),
		"cancel_url":       c.BaseURL + "/cart",
		"notify_url":       c.BaseURL + "/api/v1/payfast/notify",
		"name_first":       first,
		"name_last":        last,
		"email_address":    r.BuyerEmail,
		"m_payment_id":     r.OrderID,
		"amount":           strconv.FormatFloat(r.Amount, 'f', 2, 64),
		"item_name":        r.ItemName,
		"item_description": "Order " + r.OrderID,
		"custom_str1":      string(ids),
		"custom_str2":      strconv.FormatUint(uint64(r.BuyerID), 10),
	}
	fields[SignatureField] = Sign(fields, c.Passphrase)
	return fields
}

// ItemName renders the human-readable description shown on the payment page.
func ItemName(titles []string) string {
	switch len(titles) {
	case 0:
		return ""
	case 1:
		return titles[0]
	default:
		return fmt.Sprintf("%s and %d other item(s)", titles[0], len(titles)-1)
	}
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
