package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestGenerateHashedToken_CreatePair(t *testing.T) {
	tests := []struct {
		name       string
		byteLength int
		wantBytes  int
	}{
		{name: "zero uses default", byteLength: 0, wantBytes: DefaultTokenLength},
		{name: "negative uses default", byteLength: -10, wantBytes: DefaultTokenLength},
		{name: "16 bytes", byteLength: 16, wantBytes: 16},
		{name: "64 bytes", byteLength: 64, wantBytes: 64},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			pair, err := GenerateHashedToken(test.byteLength)

			// Assert
			if err != nil {
				t.Fatalf("GenerateHashedToken() error = %v", err)
			}
			decoded, err := base64.RawURLEncoding.DecodeString(pair.Token)
			if err != nil {
				t.Fatalf("token is not raw url base64: %v", err)
			}
			if len(decoded) != test.wantBytes {
				t.Errorf("token length = %d bytes, want %d", len(decoded), test.wantBytes)
			}
			if strings.ContainsAny(pair.Token, "+/= ") {
				t.Errorf("token contains URL-unsafe characters: %q", pair.Token)
			}
			if _, err := hex.DecodeString(pair.Hash); err != nil || len(pair.Hash) != 64 {
				t.Errorf("hash is not a sha256 hex digest: %q", pair.Hash)
			}
			if pair.Hash != HashToken(pair.Token) {
				t.Error("hash does not match HashToken(token)")
			}
		})
	}
}

func TestGenerateHashedToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		pair, err := GenerateHashedToken(DefaultTokenLength)
		if err != nil {
			t.Fatalf("iteration %d: error = %v", i, err)
		}
		if seen[pair.Token] {
			t.Fatalf("duplicate token generated: %q", pair.Token)
		}
		seen[pair.Token] = true
	}
}

func TestVerifyToken_ValidateToken(t *testing.T) {
	pair, _ := GenerateHashedToken(DefaultTokenLength)

	tests := []struct {
		name    string
		token   string
		hash    string
		wantErr error
		wantOk  bool
	}{
		{name: "correct token", token: pair.Token, hash: pair.Hash, wantOk: true},
		{name: "wrong token", token: "wrong_token_value", hash: pair.Hash},
		{name: "modified token", token: pair.Token[:len(pair.Token)-1] + "X", hash: pair.Hash},
		{name: "empty token", token: "", hash: pair.Hash, wantErr: ErrEmptyToken},
		{name: "empty hash", token: pair.Token, hash: "", wantErr: ErrEmptyToken},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			ok, err := VerifyToken(test.token, test.hash)

			// Assert
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("VerifyToken() error = %v, want %v", err, test.wantErr)
			}
			if ok != test.wantOk {
				t.Errorf("VerifyToken() = %v, want %v", ok, test.wantOk)
			}
		})
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	b, _ := GenerateState()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty states, got %q and %q", a, b)
	}
}
