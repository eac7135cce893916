package paygate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ComputeSignature returns the hex HMAC-SHA256 of "orderRef|paymentRef"
// keyed with the given secret. The gateway signs callbacks this way.
func ComputeSignature(secret, orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a callback signature in constant time.
func VerifySignature(secret, orderRef, paymentRef, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	expected := ComputeSignature(secret, orderRef, paymentRef)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// VerifyPaymentSignature checks the signature against the client's key secret.
func (c *Client) VerifyPaymentSignature(orderRef, paymentRef, signature string) bool {
	if c == nil {
		return false
	}
	return VerifySignature(c.keySecret, orderRef, paymentRef, signature)
}
