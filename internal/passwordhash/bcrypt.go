package passwordhash

import (
	"fmt"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// ParamBcryptCost sets the bcrypt work factor.
const ParamBcryptCost = "Bcrypt.Cost"

// Bcrypt wraps golang.org/x/crypto/bcrypt. Hashes carry their own cost.
type Bcrypt struct {
	Cost int
}

var _ PasswordHash = (*Bcrypt)(nil)

// NewBcrypt returns a Bcrypt using bcrypt.DefaultCost.
func NewBcrypt() *Bcrypt {
	return &Bcrypt{Cost: bcrypt.DefaultCost}
}

func (b *Bcrypt) Initialize(params map[string]string) error {
	v, ok := params[ParamBcryptCost]
	if !ok {
		return nil
	}
	cost, err := strconv.Atoi(v)
	if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("%w: %s=%q", ErrInvalidParameter, ParamBcryptCost, v)
	}
	b.Cost = cost
	return nil
}

func (b *Bcrypt) Generate(password []byte) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(password, b.Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b *Bcrypt) Verify(password []byte, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), password) == nil
}
