package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"math/big"
	"strconv"
	"strings"
	"unicode"
)

const (
	codeMin  = 100000
	codeSpan = 900000
)

// GenerateCode devuelve un codigo numerico uniforme en [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(codeMin+n.Int64(), 10), nil
}

// hashCode guarda el codigo como salt:sha256(salt:code), nunca en claro.
func hashCode(code string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	sum := sha256.Sum256([]byte(saltStr + ":" + code))
	return saltStr + ":" + base64.StdEncoding.EncodeToString(sum[:]), nil
}

func verifyCode(code, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	sum := sha256.Sum256([]byte(parts[0] + ":" + code))
	hash := base64.StdEncoding.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(parts[1])) == 1
}

func isValidCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
