// Package cryptox holds the engine's cryptographic helpers: salted PIN
// hashing with constant-time verification, and AES-GCM sealing used by the
// file-backed credential store.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"golang.org/x/crypto/argon2"
)

// dummyHash has the same shape as a real HashPin output and is compared
// against itself on the rejection path so that empty input costs a full loop.
var dummyHash = []byte(HashPin("dummy-pin", "dummy-salt"))

// HashPin returns "sha256:" + hex(SHA256(pin || salt)).
func HashPin(pin, salt string) string {
	h := sha256.New()
	h.Write([]byte(pin))
	h.Write([]byte(salt))
	return common.PinHashPrefix + hex.EncodeToString(h.Sum(nil))
}

// ValidatePinHash reports whether enteredPin hashes to storedHash under salt.
// The comparison never stops at the first differing byte.
func ValidatePinHash(enteredPin, storedHash, salt string) bool {
	if enteredPin == "" || storedHash == "" || salt == "" {
		_ = constantTimeEqual(dummyHash, dummyHash)
		return false
	}
	candidate := []byte(HashPin(enteredPin, salt))
	ok := constantTimeEqual(candidate, []byte(storedHash))
	common.WipeByteArray(candidate)
	return ok
}

// constantTimeEqual XOR-accumulates over the shorter length and only then
// folds in a length mismatch. Length is not secret; content position is.
func constantTimeEqual(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var acc byte
	for i := 0; i < n; i++ {
		acc |= a[i] ^ b[i]
	}
	return acc == 0 && len(a) == len(b)
}

// NewPinSalt returns a fresh random salt in the format the roster uses.
func NewPinSalt() (string, error) {
	return common.MakeRandHexString(16)
}

// DeriveKey stretches a device secret into a 32-byte AES key.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// Seal serializes v to JSON and encrypts it with AES-GCM under key.
// A fresh 12-byte nonce is generated per call and returned separately.
func Seal(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	defer common.WipeByteArray(plaintext)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	return aesgcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open decrypts ciphertext produced by Seal and unmarshals it into v.
func Open(ciphertext, nonce, key []byte, v any) error {
	aesgcm, err := newGCM(key)
	if err != nil {
		return err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	return json.Unmarshal(plaintext, v)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
