package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// maxNumberAttempts bounds the regenerate-on-collision loop. With a 4-digit
// suffix per UTC day, collisions stay rare until daily volume approaches the
// suffix space; exhausting the budget surfaces as a persistence error.
const maxNumberAttempts = 5

// newOrderNumber builds ORD-YYYYMMDD-NNNN from the current UTC date and a
// random 4-digit suffix.
func newOrderNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%04d", now.UTC().Format("20060102"), n.Int64()), nil
}
