// Package encryption implements at-rest encryption of chat message bodies.
//
// Envelopes have the form "<iv-hex>:<ciphertext-hex>" where the ciphertext is
// AES-256-CBC with PKCS#7 padding and a fresh random IV per message.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"chatroom/backend/internal/chaterr"
)

// KeySize is the required key length in bytes.
const KeySize = 32

// EmptySentinel is what Encrypt returns for empty input.
const EmptySentinel = ""

var (
	ErrInvalidKey       = errors.New("encryption key must be exactly 32 bytes")
	ErrInvalidEnvelope  = chaterr.New(chaterr.CryptoFailure, "invalid ciphertext envelope")
	ErrDecryptionFailed = chaterr.New(chaterr.CryptoFailure, "message decryption failed")
	ErrEncryptionFailed = chaterr.New(chaterr.CryptoFailure, "message encryption failed")
)

// Cipher encrypts and decrypts message bodies with a fixed server key.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}

// AESCipher is the production Cipher.
type AESCipher struct {
	block cipher.Block
	rand  io.Reader
}

// New returns a cipher for key, which must be exactly KeySize bytes.
func New(key []byte) (*AESCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &AESCipher{block: block, rand: rand.Reader}, nil
}

// Encrypt returns an envelope for plaintext, or EmptySentinel when plaintext
// is empty.
func (c *AESCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return EmptySentinel, nil
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Every failure wraps ErrDecryptionFailed; envelope
// shape problems additionally wrap ErrInvalidEnvelope.
func (c *AESCipher) Decrypt(envelope string) (string, error) {
	if envelope == EmptySentinel {
		return "", nil
	}

	ivHex, ctHex, ok := strings.Cut(envelope, ":")
	if !ok {
		return "", invalidEnvelope("missing separator")
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", invalidEnvelope("bad iv")
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", invalidEnvelope("bad ciphertext")
	}

	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, ct)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return string(plain), nil
}

func invalidEnvelope(reason string) error {
	return fmt.Errorf("%w: %w: %s", ErrDecryptionFailed, ErrInvalidEnvelope, reason)
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
