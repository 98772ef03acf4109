// Copyright 2026 The NexusCentral Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vault handles the crypto surface of the control plane: encryption
// of stored datastore credentials, tenant code generation, machine identity
// derivation and synthetic secret generation.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

var (
	// ErrInvalidStoredCredential is returned when a stored credential cannot
	// be decrypted (malformed ciphertext or wrong key). Decryption never
	// returns partial data.
	ErrInvalidStoredCredential = errors.New("invalid stored credential")
)

// DatabaseCredential is the synthetic per-tenant datastore credential. It is
// returned in plaintext exactly once at registration; the persisted copy is
// always ciphertext.
type DatabaseCredential struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// codeAdjectives is the fixed pool for human-readable tenant codes.
var codeAdjectives = []string{"FAST", "TECH", "SMART", "NEXT", "PRIME", "APEX", "NOVA", "SYNC"}

const secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*"

// Vault performs symmetric authenticated encryption keyed by a process-wide
// secret. The AES-256 key is derived from the secret with HKDF-SHA256 so the
// configured value can be an arbitrary passphrase.
type Vault struct {
	aead cipher.AEAD
}

// New creates a Vault from the process-wide encryption secret.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption secret is required")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("nexuscentral-credential-vault"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// EncryptCredential serializes and seals a credential for storage.
func (v *Vault) EncryptCredential(cred DatabaseCredential) (string, error) {
	plaintext, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credential: %w", err)
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptCredential opens a stored ciphertext. Any malformed or tampered
// input surfaces as ErrInvalidStoredCredential.
func (v *Vault) DecryptCredential(ciphertext string) (DatabaseCredential, error) {
	var cred DatabaseCredential

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return cred, ErrInvalidStoredCredential
	}
	if len(raw) < v.aead.NonceSize() {
		return cred, ErrInvalidStoredCredential
	}

	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return cred, ErrInvalidStoredCredential
	}

	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return cred, ErrInvalidStoredCredential
	}

	return cred, nil
}

// GenerateCode returns a human-readable tenant code such as "APEX-4821".
// Codes are not unique by construction; the registry retries against its
// existence check.
func GenerateCode() string {
	adj := codeAdjectives[randomInt(len(codeAdjectives))]
	num := 1000 + randomInt(9000)
	return fmt.Sprintf("%s-%d", adj, num)
}

// DeriveMachineIdentity produces the deterministic one-way hash that binds
// an installation to a physical machine without storing raw hardware
// identifiers.
func DeriveMachineIdentity(hardwareFingerprint, networkFingerprint string) string {
	sum := sha256.Sum256([]byte(hardwareFingerprint + "-" + networkFingerprint))
	return hex.EncodeToString(sum[:])
}

// GenerateSecret returns a uniformly random string over an
// alphanumeric+symbol alphabet, used for synthetic datastore passwords.
func GenerateSecret(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = secretAlphabet[randomInt(len(secretAlphabet))]
	}
	return string(b)
}

func randomInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand failing means the process has no entropy source;
		// nothing sensible can run in that state.
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return int(v.Int64())
}
