package household

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	codeLength   = 6
	codeAttempts = 10
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type codeChecker interface {
	CodeTaken(ctx context.Context, code string) (bool, error)
}

func generateUniqueCode(ctx context.Context, store codeChecker) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := generateCode(codeLength)
		if err != nil {
			return "", err
		}
		taken, err := store.CodeTaken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeGeneration
}

func generateCode(length int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
