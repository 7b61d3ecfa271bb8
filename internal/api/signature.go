package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature checks an HMAC-SHA256 webhook signature over the raw
// request body. The header carries "sha256=<hex digest>". An empty secret
// disables verification.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return true
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(header, signaturePrefix)))
}
