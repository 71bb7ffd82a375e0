package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

var ErrEmptyToken = errors.New("token and hash cannot be empty")

const (
	DefaultTokenLength = 32 // 256 bits
	stateTokenLength   = 16
)

// TokenPair is an opaque token handed to the client and the hash we keep.
type TokenPair struct {
	Token string
	Hash  string
}

func randomString(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = DefaultTokenLength
	}

	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateHashedToken returns a URL-safe random token and its SHA-256 hash.
// A non-positive length falls back to DefaultTokenLength.
func GenerateHashedToken(byteLength int) (*TokenPair, error) {
	token, err := randomString(byteLength)
	if err != nil {
		return nil, err
	}

	return &TokenPair{Token: token, Hash: HashToken(token)}, nil
}

// GenerateState returns a random value for OAuth state parameters.
func GenerateState() (string, error) {
	return randomString(stateTokenLength)
}

func VerifyToken(token, storedHash string) (bool, error) {
	if token == "" || storedHash == "" {
		return false, ErrEmptyToken
	}

	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(storedHash)) == 1, nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
