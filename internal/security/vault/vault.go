package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// SealedPrefix marks a configuration value produced by Seal.
const SealedPrefix = "enc:"

const keyInfo = "paybridge/credentials/v1"

var (
	ErrInvalidKey     = errors.New("vault: invalid encryption key")
	ErrInvalidPayload = errors.New("vault: invalid encrypted payload")
	ErrDecryption     = errors.New("vault: decryption failed")
)

// Vault seals processor credentials with AES-256-GCM. The cipher key is
// derived from the master key with HKDF-SHA256, so any master key string
// works.
type Vault struct {
	aead cipher.AEAD
}

func New(masterKey string) (*Vault, error) {
	if strings.TrimSpace(masterKey) == "" {
		return nil, ErrInvalidKey
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(masterKey), nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

type envelope struct {
	Version    int    `json:"v"`
	Nonce      string `json:"n"`
	Ciphertext string `json:"c"`
}

func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Version:    1,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(v.aead.Seal(nil, nonce, plaintext, nil)),
	})
}

func (v *Vault) Decrypt(data []byte) ([]byte, error) {
	var payload envelope
	if err := json.Unmarshal(data, &payload); err != nil || payload.Version != 1 {
		return nil, ErrInvalidPayload
	}
	nonce, err := base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil || len(nonce) != v.aead.NonceSize() {
		return nil, ErrInvalidPayload
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// Seal encrypts a configuration value into its enc: form.
func (v *Vault) Seal(value string) (string, error) {
	data, err := v.Encrypt([]byte(value))
	if err != nil {
		return "", err
	}
	return SealedPrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// Open returns value unchanged unless it carries the enc: prefix.
func (v *Vault) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", ErrInvalidPayload
	}
	plaintext, err := v.Decrypt(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}
