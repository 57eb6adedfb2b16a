package txcode

import (
	"context"
	"crypto/rand"
	"fmt"
)

// Alphabet excludes ambiguous glyphs (0/O, 1/I/L) so codes survive being read
// aloud or copied by hand.
const alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// DefaultLength is the number of random characters after the prefix.
const DefaultLength = 8

// maxAttempts bounds the collision-check loop against the store.
const maxAttempts = 5

// ExistsFunc reports whether a candidate code is already in use.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generate produces a short, human-legible transaction code and verifies it is
// unique via the supplied existence check, retrying a bounded number of times.
func Generate(ctx context.Context, prefix string, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := random(prefix, DefaultLength)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check transaction code uniqueness: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique transaction code after %d attempts", maxAttempts)
}

func random(prefix string, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	if prefix == "" {
		return string(out), nil
	}
	return prefix + "-" + string(out), nil
}
