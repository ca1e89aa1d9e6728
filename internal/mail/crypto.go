package mail

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrDecryptFailed indicates the credential blob could not be opened,
// usually because the encryption key changed.
var ErrDecryptFailed = errors.New("credential decryption failed")

// CredentialCipher encrypts and decrypts per-account credential blobs
// with AES-256-GCM. The key is derived from the application secret;
// decryption happens just-in-time when an adapter is constructed.
type CredentialCipher struct {
	key [32]byte
}

// NewCredentialCipher derives a cipher from the application secret.
func NewCredentialCipher(secret string) (*CredentialCipher, error) {
	if secret == "" {
		return nil, errors.New("credential encryption secret is empty")
	}
	return &CredentialCipher{key: sha256.Sum256([]byte(secret))}, nil
}

// Encrypt seals plaintext and returns a base64 blob (nonce prefixed).
func (c *CredentialCipher) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64 blob produced by Encrypt.
func (c *CredentialCipher) Decrypt(encoded string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, ErrDecryptFailed
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// EncryptIMAPCredentials serializes and seals IMAP credentials.
func (c *CredentialCipher) EncryptIMAPCredentials(creds IMAPCredentials) (string, error) {
	data, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return c.Encrypt(data)
}

// DecryptIMAPCredentials opens a sealed IMAP credential blob.
func (c *CredentialCipher) DecryptIMAPCredentials(encoded string) (IMAPCredentials, error) {
	var creds IMAPCredentials
	data, err := c.Decrypt(encoded)
	if err != nil {
		return creds, err
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("%w: malformed credential payload", ErrDecryptFailed)
	}
	return creds, nil
}

// EncryptOAuthCredentials serializes and seals OAuth2 credentials.
func (c *CredentialCipher) EncryptOAuthCredentials(creds OAuthCredentials) (string, error) {
	data, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return c.Encrypt(data)
}

// DecryptOAuthCredentials opens a sealed OAuth2 credential blob.
func (c *CredentialCipher) DecryptOAuthCredentials(encoded string) (OAuthCredentials, error) {
	var creds OAuthCredentials
	data, err := c.Decrypt(encoded)
	if err != nil {
		return creds, err
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("%w: malformed credential payload", ErrDecryptFailed)
	}
	return creds, nil
}
