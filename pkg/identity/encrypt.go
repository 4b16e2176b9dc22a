package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// hkdfInfo binds derived keys to this use of the exchange
const hkdfInfo = "veilmesh single destination"

// Encrypt encrypts data so that only the holder of the identity's X25519
// private key can decrypt it. A fresh ephemeral X25519 keypair is generated
// per call; the shared secret is expanded with HKDF-SHA256 into an
// AES-256-GCM key. Token layout: ephemeral public key (32) + nonce + sealed
// ciphertext.
func (id *Identity) Encrypt(data []byte) ([]byte, error) {
	var ephPriv [32]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return nil, ErrEncryptionFailed
	}

	var ephPub [32]byte
	curve25519.ScalarBaseMult(&ephPub, &ephPriv)

	shared, err := curve25519.X25519(ephPriv[:], id.dhPub[:])
	if err != nil {
		return nil, ErrEncryptionFailed
	}

	key, err := deriveSessionKey(shared, ephPub[:], id.dhPub[:])
	if err != nil {
		return nil, ErrEncryptionFailed
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrEncryptionFailed
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, ErrEncryptionFailed
	}

	token := make([]byte, 0, 32+len(nonce)+len(data)+gcm.Overhead())
	token = append(token, ephPub[:]...)
	token = append(token, nonce...)
	token = gcm.Seal(token, nonce, data, nil)

	return token, nil
}

// Decrypt decrypts a token produced by Encrypt for this identity. Requires
// the private half. Tampered ciphertext or a token produced for a different
// identity is a hard error; no partial plaintext is ever returned.
func (id *Identity) Decrypt(token []byte) ([]byte, error) {
	if !id.hasPrivate {
		return nil, ErrNoPrivateKey
	}

	if len(token) < 32 {
		return nil, ErrDecryptionFailed
	}

	var ephPub [32]byte
	copy(ephPub[:], token[:32])

	shared, err := curve25519.X25519(id.dhPriv[:], ephPub[:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	key, err := deriveSessionKey(shared, ephPub[:], id.dhPub[:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	rest := token[32:]
	if len(rest) < gcm.NonceSize() {
		return nil, ErrDecryptionFailed
	}

	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// deriveSessionKey expands an X25519 shared secret into an AES-256 key,
// salted with both public keys of the exchange
func deriveSessionKey(shared, ephPub, recipientPub []byte) ([]byte, error) {
	salt := make([]byte, 0, 64)
	salt = append(salt, ephPub...)
	salt = append(salt, recipientPub...)

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, shared, salt, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
