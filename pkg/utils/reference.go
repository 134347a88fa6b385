package utils

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const referenceAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateRandomString returns n characters drawn from [a-z0-9] using crypto/rand.
func GenerateRandomString(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("invalid random string length")
	}

	out := make([]byte, n)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = referenceAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// GenerateReference builds a merchant reference shaped <prefix>-<unix>-<random>,
// e.g. ROGER-1700000000-abc123def.
func GenerateReference(prefix string, now time.Time) (string, error) {
	suffix, err := GenerateRandomString(9)
	if err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now.Unix(), suffix), nil
}
