package destination

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

var (
	ErrInvalidKeyLength = errors.New("invalid group key length")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrMalformedToken   = errors.New("malformed group token")
)

// GroupKeySize is the size of a pre-shared group key
const GroupKeySize = 16

// GroupEncrypt seals data with a 16-byte shared key using AES-128-GCM. The
// returned token is self-describing: a fresh nonce followed by the
// ciphertext and integrity tag. Any holder of the key can decrypt; the
// scheme provides confidentiality and integrity within the key-sharing
// group, but no per-member authentication.
func GroupEncrypt(key []byte, data []byte) ([]byte, error) {
	if len(data) > MaxPlaintextSize {
		return nil, ErrPayloadTooLarge
	}

	gcm, err := groupGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

// GroupDecrypt opens a token produced by GroupEncrypt. The integrity tag is
// checked before any plaintext is returned; tag mismatch, a wrong key and a
// malformed token all fail closed.
func GroupDecrypt(key []byte, token []byte) ([]byte, error) {
	gcm, err := groupGCM(key)
	if err != nil {
		return nil, err
	}

	if len(token) < gcm.NonceSize()+gcm.Overhead() {
		return nil, ErrMalformedToken
	}

	nonce, ciphertext := token[:gcm.NonceSize()], token[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return plaintext, nil
}

func groupGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != GroupKeySize {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeyLength
	}

	return cipher.NewGCM(block)
}
