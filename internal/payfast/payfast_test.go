package payfast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	fields := map[string]string{
		"m_payment_id":   "ORDER-1700000000000-ab12cd34",
		"payment_status": "COMPLETE",
		"pf_payment_id":  "1089250",
		"amount_gross":   "250.00",
	}
	fields[SignatureField] = Sign(fields, "secret phrase")

	require.True(t, Verify(fields, "secret phrase"))
}

func TestVerifyDetectsTampering(t *testing.T) {
	fields := map[string]string{
		"m_payment_id":   "ORDER-1700000000000-ab12cd34",
		"payment_status": "COMPLETE",
		"amount_gross":   "250.00",
	}
	fields[SignatureField] = Sign(fields, "secret phrase")

	fields["amount_gross"] = "0.01"
	require.False(t, Verify(fields, "secret phrase"))
}

func TestVerifyMissingSignature(t *testing.T) {
	fields := map[string]string{"m_payment_id": "ORDER-1"}
	require.False(t, Verify(fields, "secret"))

	fields[SignatureField] = ""
	require.False(t, Verify(fields, "secret"))
}

func TestVerifyWrongPassphrase(t *testing.T) {
	fields := map[string]string{"m_payment_id": "ORDER-1"}
	fields[SignatureField] = Sign(fields, "right")
	require.False(t, Verify(fields, "wrong"))
}

func TestSignIsDeterministicAndOrderIndependent(t *testing.T) {
	a := Sign(map[string]string{"b": "2", "a": "1", "c": "3"}, "")
	b := Sign(map[string]string{"c": "3", "a": "1", "b": "2"}, "")
	require.Equal(t, a, b)
	require.Len(t, a, 32)
	require.Equal(t, strings.ToLower(a), a)
}

func TestSignTrimsAndEncodesValues(t *testing.T) {
	require.Equal(t,
		Sign(map[string]string{"name": "John Doe"}, ""),
		Sign(map[string]string{"name": "  John Doe  "}, ""),
	)
	require.NotEqual(t,
		Sign(map[string]string{"name": "John Doe"}, ""),
		Sign(map[string]string{"name": "JohnDoe"}, ""),
	)
}

func TestSignEmptyPassphraseOmitted(t *testing.T) {
	fields := map[string]string{"a": "1"}
	require.NotEqual(t, Sign(fields, ""), Sign(fields, "p"))
}

func TestBuildFormSignedAndComplete(t *testing.T) {
	cfg := Config{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Passphrase:  "jt7NOE43FZPn",
		BaseURL:     "https://market.example.com",
		Sandbox:     true,
	}
	form := cfg.BuildForm(PaymentRequest{
		OrderID:    "ORDER-1700000000000-ab12cd34",
		Token:      strings.Repeat("a", 64),
		Amount:     199.9,
		ItemName:   "Logo pack and 2 other item(s)",
		BuyerID:    7,
		BuyerName:  "Jane van der Merwe",
		BuyerEmail: "jane@example.com",
		ProductIDs: []uint{1, 2, 3},
	})

	require.Equal(t, "10000100", form["merchant_id"])
	require.Equal(t, "199.90", form["amount"])
	require.Equal(t, "ORDER-1700000000000-ab12cd34", form["m_payment_id"])
	require.Equal(t, "Jane", form["name_first"])
	require.Equal(t, "van der Merwe", form["name_last"])
	require.Equal(t, "[1,2,3]", form["custom_str1"])
	require.Equal(t, "7", form["custom_str2"])
	require.Contains(t, form["return_url"], "order=ORDER-1700000000000-ab12cd34")
	require.Contains(t, form["return_url"], "token="+strings.Repeat("a", 64))
	require.True(t, Verify(form, cfg.Passphrase))

	require.Equal(t, "https://sandbox.payfast.co.za/eng/process", cfg.ProcessURL())
	cfg.Sandbox = false
	require.Equal(t, "https://www.payfast.co.za/eng/process", cfg.ProcessURL())
}

func TestItemName(t *testing.T) {
	require.Equal(t, "", ItemName(nil))
	require.Equal(t, "Logo pack", ItemName([]string{"Logo pack"}))
	require.Equal(t, "Logo pack and 2 other item(s)", ItemName([]string{"Logo pack", "SEO audit", "Jingle"}))
}
