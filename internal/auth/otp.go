package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

const otpDigits = 6

var otpSpace = big.NewInt(1_000_000)

// GenerateOTP draws a fresh 6-digit numeric code. Leading zeros are kept.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// HashOTP is the one-way function applied to an OTP before it is stored.
func HashOTP(otp string) string {
	sum := sha256.Sum256([]byte(otp))
	return hex.EncodeToString(sum[:])
}

func VerifyOTP(otp, hash string) bool {
	if otp == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashOTP(otp)), []byte(hash)) == 1
}
