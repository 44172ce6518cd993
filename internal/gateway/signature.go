package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Mirpay-Signature"

// Sign returns the signature MirPay sends for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature checks header against payload. An empty secret disables the check.
func ValidSignature(payload []byte, secret, header string) bool {
	if secret == "" {
		return true
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(strings.ToLower(header)))
}
