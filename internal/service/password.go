package service

import (
	"crypto/rand"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordScore = 3
	passwordSymbols  = `!@#$%^&*(),.?":{}|<>`
)

var strengthLabels = []string{"Very Weak", "Weak", "Fair", "Good", "Strong"}

// PasswordStrength es el puntaje 0-5 de las cinco reglas y lo que falta.
type PasswordStrength struct {
	Score    int      `json:"score"`
	Feedback []string `json:"feedback"`
}

func (p PasswordStrength) Label() string {
	if p.Score <= 0 {
		return strengthLabels[0]
	}
	return strengthLabels[p.Score-1]
}

func CheckPasswordStrength(password string) PasswordStrength {
	var (
		s                                    PasswordStrength
		hasUpper, hasLower, hasDigit, hasSym bool
	)
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSym = true
		}
	}

	check := func(ok bool, feedback string) {
		if ok {
			s.Score++
			return
		}
		s.Feedback = append(s.Feedback, feedback)
	}
	check(len(password) >= 8, "At least 8 characters")
	check(hasUpper, "One uppercase letter")
	check(hasLower, "One lowercase letter")
	check(hasDigit, "One number")
	check(hasSym, "One special character")
	return s
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func ComparePassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

const tempPasswordAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateTemporaryPassword crea la contraseña inicial de un hijo cuando el padre no la define.
func generateTemporaryPassword(length int) (string, error) {
	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(tempPasswordAlphabet[n.Int64()])
	}
	return b.String(), nil
}
