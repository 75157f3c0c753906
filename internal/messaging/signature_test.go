package messaging

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateSignature(t *testing.T) {
	secret := "channel-secret"
	body := []byte(`{"events":[{"type":"message"}]}`)

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{"valid", secret, body, sign(secret, body), true},
		{"tampered body", secret, []byte(`{"events":[]}`), sign(secret, body), false},
		{"wrong secret", secret, body, sign("other-secret", body), false},
		{"garbage signature", secret, body, "not-base64-hmac", false},
		{"empty signature", secret, body, "", false},
		{"empty secret", "", body, sign(secret, body), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateSignature(tc.secret, tc.body, tc.signature); got != tc.want {
				t.Errorf("ValidateSignature() = %v, want %v", got, tc.want)
			}
		})
	}
}
