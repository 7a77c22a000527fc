package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"golang.org/x/crypto/argon2"
)

const (
	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12
	// SaltSize is the Argon2id salt length in bytes.
	SaltSize = 16
	// KeystoreVersion is the current on-disk format version.
	KeystoreVersion = 1

	argon2MemCostKiB  = 19 * 1024 // 19 MiB, OWASP 2023 recommendation
	argon2TimeCost    = 2
	argon2Parallelism = 1
	argon2KeyLen      = 32
)

// deriveKey runs Argon2id over password+salt with the keystore's fixed
// parameters, producing a 32-byte AES-256 key. Callers must zero the
// returned slice after use.
func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argon2TimeCost, argon2MemCostKiB, argon2Parallelism, argon2KeyLen)
}

// zero overwrites a byte slice in place. Best-effort in a garbage-collected
// runtime, but it removes the secret from the slice the caller is holding.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// newSalt returns a fresh random Argon2id salt.
func newSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, apexerr.Other(err)
	}
	return salt, nil
}

// newNonce returns a fresh random AES-GCM nonce.
func newNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, apexerr.Other(err)
	}
	return nonce, nil
}

// encrypt derives a key from password+salt and seals plaintext under
// AES-256-GCM with the given nonce. The derived key is zeroed before
// returning.
func encrypt(password string, salt, nonce, plaintext []byte) ([]byte, error) {
	key := deriveKey(password, salt)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apexerr.Other(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apexerr.Other(err)
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

// decrypt derives a key from password+salt and opens ciphertext under
// AES-256-GCM. A wrong password and a tampered ciphertext are
// indistinguishable: both return a generic decryption failure.
func decrypt(password string, salt, nonce, ciphertext []byte) ([]byte, error) {
	key := deriveKey(password, salt)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apexerr.Other(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apexerr.Other(err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, apexerr.Other(errors.New("incorrect password or corrupted keystore data"))
	}
	return plaintext, nil
}
