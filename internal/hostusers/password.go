package hostusers

import (
	"github.com/GehirnInc/crypt/sha512_crypt"
)

// HashPassword produces a sha512-crypt hash with a random salt,
// suitable for chpasswd -e and /etc/shadow.
func HashPassword(plain string) (string, error) {
	return sha512_crypt.New().Generate([]byte(plain), nil)
}
