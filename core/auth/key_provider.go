package auth

import (
	"errors"
)

// KeyProvider supplies the verification key for a token's key id.
type KeyProvider interface {
	GetKey(kid string) (interface{}, error)
}

// StaticKeyProvider returns one shared HMAC secret regardless of kid.
type StaticKeyProvider struct {
	Secret []byte
}

func (p StaticKeyProvider) GetKey(kid string) (interface{}, error) {
	if len(p.Secret) == 0 {
		return nil, errors.New("no signing secret configured")
	}
	return p.Secret, nil
}
