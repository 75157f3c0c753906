package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the provider's timestamped HMAC of the raw body.
const SignatureHeader = "X-Provider-Signature"

// ComputeSignature builds the header value for a payload at a point in time.
// The scheme is `t=<unix>,v1=<hex hmac-sha256(secret, "<t>.<body>")>`; the
// timestamp inside the signed string pins the delivery against replay.
func ComputeSignature(secret string, body []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature checks a signature header against the raw body. Deliveries
// whose timestamp falls outside the tolerance window are rejected even when
// the HMAC itself is intact.
func VerifySignature(secret string, body []byte, header string, tolerance time.Duration, now time.Time) bool {
	ts, sig, ok := parseSignatureHeader(header)
	if !ok {
		return false
	}

	at := time.Unix(ts, 0)
	age := now.Sub(at)
	if age < -tolerance || age > tolerance {
		return false
	}

	expected := ComputeSignature(secret, body, at)
	_, expectedSig, _ := parseSignatureHeader(expected)
	return hmac.Equal([]byte(sig), []byte(expectedSig))
}

func parseSignatureHeader(header string) (ts int64, sig string, ok bool) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", false
			}
			ts = parsed
		case "v1":
			sig = value
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", false
	}
	return ts, sig, true
}
