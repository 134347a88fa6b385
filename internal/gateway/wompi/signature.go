package wompi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"rogerbox/pkg/utils"
)

var dec100 = decimal.NewFromInt(100)

// AmountInCents converts a major unit amount to minor units, rounding half away from zero.
func AmountInCents(amount decimal.Decimal) int64 {
	return amount.Mul(dec100).Round(0).IntPart()
}

// Signer computes the integrity checksum sent with every transaction.
// The secret is only ever used as the HMAC key.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: integrity secret is not set", utils.ErrConfiguration)
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns hex(HMAC-SHA256(secret, reference || amountInCents || currency)).
func (s *Signer) Sign(reference string, amountInCents int64, currency string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", fmt.Errorf("%w: integrity secret is not set", utils.ErrConfiguration)
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(reference))
	mac.Write([]byte(strconv.FormatInt(amountInCents, 10)))
	mac.Write([]byte(currency))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// WebhookVerifier authenticates inbound event deliveries.
type WebhookVerifier struct {
	secret []byte
}

func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: events secret is not set", utils.ErrConfiguration)
	}
	return &WebhookVerifier{secret: []byte(secret)}, nil
}

// Sum returns the hex signature the gateway is expected to send for body.
func (v *WebhookVerifier) Sum(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks header against the raw body in constant time. It must run
// before the body is parsed.
func (v *WebhookVerifier) Verify(body []byte, header string) error {
	if v == nil || len(v.secret) == 0 {
		return fmt.Errorf("%w: events secret is not set", utils.ErrConfiguration)
	}

	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(header, "sha256=")
	if header == "" {
		return fmt.Errorf("%w: missing signature header", utils.ErrSignature)
	}

	got, err := hex.DecodeString(strings.ToLower(header))
	if err != nil {
		return fmt.Errorf("%w: malformed signature header", utils.ErrSignature)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return utils.ErrSignature
	}
	return nil
}
