// Package codes produces the random, fixed-length verification codes that
// back account activation and password restore.
package codes

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	DefaultLength   = 6
	DefaultAlphabet = "0123456789"
)

var (
	ErrBadLength   = errors.New("codes: length must be positive")
	ErrBadAlphabet = errors.New("codes: alphabet must not be empty")
)

// Generator draws codes uniformly from a restricted alphabet using a
// cryptographically strong source. It has no side effects beyond
// randomness consumption; uniqueness among live records is the store's
// concern.
type Generator struct {
	Length   int
	Alphabet string
}

func NewGenerator(length int, alphabet string) Generator {
	if length <= 0 {
		length = DefaultLength
	}
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	return Generator{Length: length, Alphabet: alphabet}
}

func (g Generator) Generate() (string, error) {
	if g.Length <= 0 {
		return "", ErrBadLength
	}
	if len(g.Alphabet) == 0 {
		return "", ErrBadAlphabet
	}
	max := big.NewInt(int64(len(g.Alphabet)))
	buf := make([]byte, g.Length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = g.Alphabet[n.Int64()]
	}
	return string(buf), nil
}
