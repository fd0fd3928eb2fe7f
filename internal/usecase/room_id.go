package usecase

import (
	"crypto/rand"
	"fmt"
)

// roomIDAlphabet omits characters that are easy to confuse when typed
// (0/O, 1/I). Room codes are always uppercase.
const roomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newRoomID(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate room id: %w", err)
	}

	for i := range b {
		b[i] = roomIDAlphabet[int(b[i])%len(roomIDAlphabet)]
	}

	return string(b), nil
}
