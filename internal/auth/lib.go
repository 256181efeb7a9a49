package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// PasscodeLength is the number of decimal digits in a login passcode.
const PasscodeLength = 6

var passcodeSpace = big.NewInt(1_000_000)

// GeneratePasscode returns a uniformly random 6-digit code. Leading zeros are kept.
func GeneratePasscode() (string, error) {
	const op = "auth.GeneratePasscode"

	n, err := rand.Int(rand.Reader, passcodeSpace)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Sprintf("%0*d", PasscodeLength, n.Int64()), nil
}

func HashPasscode(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasscode(code, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	return err == nil
}
