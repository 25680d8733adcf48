// Package backup seals the server list into a password-protected blob and
// moves it to and from an object store.
package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/quocson95/ftpfleet/pkg/storage"
)

// ErrDecrypt covers both a wrong password and a damaged blob; GCM cannot tell
// them apart.
var ErrDecrypt = errors.New("decryption failed: wrong password or corrupted data")

// Envelope is the on-disk format of a sealed backup
type Envelope struct {
	Version       string `json:"version"`
	Timestamp     string `json:"timestamp"`
	Salt          string `json:"salt"`           // base64-encoded
	Nonce         string `json:"nonce"`          // base64-encoded
	EncryptedData string `json:"encrypted_data"` // base64-encoded
}

// Payload is what gets sealed
type Payload struct {
	Servers          []storage.Record `json:"servers"`
	DefaultRemoteDir string           `json:"default_remote_dir,omitempty"`
}

const envelopeVersion = "1"

// Argon2id parameters
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // KiB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 32
)

// DeriveKey derives a 256-bit key from password using Argon2id
func DeriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts the payload with AES-256-GCM under a password-derived key and
// returns the JSON envelope.
func Seal(p Payload, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("backup password is required")
	}

	plaintext, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	env := Envelope{
		Version:       envelopeVersion,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Salt:          base64.StdEncoding.EncodeToString(salt),
		Nonce:         base64.StdEncoding.EncodeToString(nonce),
		EncryptedData: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	}
	return json.MarshalIndent(env, "", "  ")
}

// Open reverses Seal
func Open(data []byte, password string) (Payload, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Payload{}, fmt.Errorf("invalid backup format: %w", err)
	}
	if env.Version != envelopeVersion {
		return Payload{}, fmt.Errorf("unsupported backup version %q", env.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return Payload{}, fmt.Errorf("invalid salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return Payload{}, fmt.Errorf("invalid nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.EncryptedData)
	if err != nil {
		return Payload{}, fmt.Errorf("invalid encrypted data: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return Payload{}, err
	}
	if len(nonce) != gcm.NonceSize() {
		return Payload{}, ErrDecrypt
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Payload{}, ErrDecrypt
	}

	var p Payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return Payload{}, fmt.Errorf("failed to parse backup data: %w", err)
	}
	return p, nil
}
