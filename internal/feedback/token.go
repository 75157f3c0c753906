package feedback

import (
	"time"

	"funnel_backend/platform/apperr"
	"funnel_backend/platform/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenPurpose = "feedback-form"

// LinkTokens issues and verifies the signed tokens embedded in lead-facing
// feedback links. The token is the only credential on the public form.
type LinkTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewLinkTokens creates a token issuer from config.
func NewLinkTokens(cfg config.LinkTokenConfig) *LinkTokens {
	return &LinkTokens{secret: []byte(cfg.GetPublicLinkSecret()), ttl: cfg.GetPublicLinkTTL()}
}

type linkClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Issue signs a feedback-form token for one lead.
func (t *LinkTokens) Issue(leadID uuid.UUID) (string, error) {
	now := time.Now()
	claims := linkClaims{
		Purpose: tokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   leadID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies a token and returns the lead it targets. Expired, tampered,
// or wrong-purpose tokens are all rejected the same way.
func (t *LinkTokens) Parse(token string) (uuid.UUID, error) {
	var claims linkClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.Purpose != tokenPurpose {
		return uuid.UUID{}, apperr.Unauthorized("invalid or expired link")
	}

	leadID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.UUID{}, apperr.Unauthorized("invalid or expired link")
	}
	return leadID, nil
}
