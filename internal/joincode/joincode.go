// Package joincode generates and normalises family join codes: eight
// uppercase base-36 characters with no checksum.
//
// CODE SPACE:
// 36^8 is about 2.8 trillion codes, drawn from crypto/rand so a code cannot
// be guessed from earlier ones. A collision with an existing family is still
// possible; the UNIQUE index on family_groups.join_code rejects it and the
// family service retries with a fresh code.
package joincode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Length is the number of characters in a join code.
const Length = 8

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var alphabetSize = big.NewInt(int64(len(alphabet)))

// New returns a random join code.
func New() (string, error) {
	var b strings.Builder
	b.Grow(Length)
	for range Length {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("joincode: reading random: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Normalize trims and upper-cases user input so codes compare case-insensitively.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code, after normalisation, has the join-code shape.
func Valid(code string) bool {
	code = Normalize(code)
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
