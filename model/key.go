package model

import (
	"errors"
	"fmt"
)

// MaxKeyLength is the maximum length of a primary key in bytes.
const MaxKeyLength = 255

// ErrInvalidKey is returned for empty or oversized primary keys.
var ErrInvalidKey = errors.New("invalid primary key")

// ValidateKey checks that key is between 1 and MaxKeyLength bytes long.
func ValidateKey(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: key is %d bytes, maximum is %d", ErrInvalidKey, len(key), MaxKeyLength)
	}
	return nil
}
