package utils

import (
	"fmt"
	"math/rand"
	"time"
)

const orderCodeSuffixLength = 6
const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderCode builds a human-readable appointment code such as
// APT-20260831-K4T9ZQ. Safe for concurrent bookings: the top-level rand
// functions serialize access to the shared source. Collisions are unlikely
// but possible; callers must regenerate when the unique constraint rejects
// the insert.
func GenerateOrderCode(now time.Time) string {
	b := make([]byte, orderCodeSuffixLength)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return fmt.Sprintf("APT-%s-%s", now.Format("20060102"), string(b))
}
