package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const orderNumberDigits = 6

var orderNumberSpace = big.NewInt(1_000_000)

// NumberGenerator produces candidate order numbers. Uniqueness is enforced
// by the Store; the Builder retries on collision.
type NumberGenerator interface {
	Next() (string, error)
}

// RandomNumbers draws 6-digit, zero-padded order numbers from crypto/rand.
type RandomNumbers struct{}

func (RandomNumbers) Next() (string, error) {
	n, err := rand.Int(rand.Reader, orderNumberSpace)
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return fmt.Sprintf("%0*d", orderNumberDigits, n.Int64()), nil
}
