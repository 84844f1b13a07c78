package random

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

const digits = "0123456789"

// NumericCode returns a code of length n built from digits only. Letters and
// special characters are excluded so the code stays easy to read out and type
// on any device.
func NumericCode(n int) (string, error) {
	const op = "random.NumericCode"

	buf := make([]byte, n)
	max := big.NewInt(int64(len(digits)))

	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		buf[i] = digits[idx.Int64()]
	}

	return string(buf), nil
}

// Secret returns a url-safe high-entropy string from n random bytes.
func Secret(n int) (string, error) {
	const op = "random.Secret"

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
