// Package secrets seals and opens small secrets, such as the upstream API
// token, with age so they can live in a config file.
package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

var (
	// ErrNoRecipient is returned when no recipient is configured for sealing.
	ErrNoRecipient = errors.New("no recipient configured for encryption")
	// ErrNoIdentity is returned when no identity is configured for opening.
	ErrNoIdentity = errors.New("no identity configured for decryption")
	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrEncryptionFailed is returned when encryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrInvalidKey is returned when a key is invalid.
	ErrInvalidKey = errors.New("invalid key format")
)

// Config holds the keys for a Service.
type Config struct {
	// Recipient is an age public key (age1...) used by Seal.
	Recipient string
	// Identity is an AGE-SECRET-KEY-1... string, or a path to an age
	// identity file, used by Open.
	Identity string
}

// Service seals and opens armored age payloads.
type Service struct {
	recipient  *age.X25519Recipient
	identities []age.Identity
	logger     *slog.Logger
}

// NewService creates a Service. Either key may be empty; the corresponding
// operation then fails with ErrNoRecipient or ErrNoIdentity.
func NewService(cfg *Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{logger: logger}

	if cfg.Recipient != "" {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(cfg.Recipient))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid recipient: %v", ErrInvalidKey, err)
		}
		svc.recipient = recipient
	}

	if cfg.Identity != "" {
		identities, err := parseIdentity(cfg.Identity)
		if err != nil {
			return nil, err
		}
		svc.identities = identities
	}

	return svc, nil
}

func parseIdentity(value string) ([]age.Identity, error) {
	value = strings.TrimSpace(value)

	var src io.Reader
	if strings.HasPrefix(value, "AGE-SECRET-KEY-") {
		src = strings.NewReader(value)
	} else {
		data, err := os.ReadFile(value)
		if err != nil {
			return nil, fmt.Errorf("%w: reading identity file: %v", ErrInvalidKey, err)
		}
		src = bytes.NewReader(data)
	}

	identities, err := age.ParseIdentities(src)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid identity: %v", ErrInvalidKey, err)
	}
	return identities, nil
}

// Seal encrypts plaintext to the configured recipient and returns it
// ASCII-armored.
func (s *Service) Seal(plaintext []byte) (string, error) {
	if s.recipient == nil {
		return "", ErrNoRecipient
	}

	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)

	w, err := age.Encrypt(aw, s.recipient)
	if err != nil {
		s.logger.Error("failed to create age encryptor", "error", err)
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	return buf.String(), nil
}

// Open decrypts an armored payload produced by Seal or `age -a`.
func (s *Service) Open(armored string) ([]byte, error) {
	if len(s.identities) == 0 {
		return nil, ErrNoIdentity
	}

	r, err := age.Decrypt(armor.NewReader(strings.NewReader(strings.TrimSpace(armored)+"\n")), s.identities...)
	if err != nil {
		s.logger.Error("failed to create age decryptor", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

// CanSeal returns true if the service is configured for encryption.
func (s *Service) CanSeal() bool {
	return s.recipient != nil
}

// CanOpen returns true if the service is configured for decryption.
func (s *Service) CanOpen() bool {
	return len(s.identities) > 0
}

// ResolveToken returns the plain token when set, otherwise opens sealed
// with identity. Both empty yields an empty token.
func ResolveToken(plain, sealed, identity string, logger *slog.Logger) (string, error) {
	if plain != "" || sealed == "" {
		return plain, nil
	}

	svc, err := NewService(&Config{Identity: identity}, logger)
	if err != nil {
		return "", err
	}
	token, err := svc.Open(sealed)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(token)), nil
}

// GenerateKeyPair generates a new age key pair.
// Returns the recipient (public) and identity (private) strings.
func GenerateKeyPair() (recipient, identity string, err error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate age key pair: %w", err)
	}

	return id.Recipient().String(), id.String(), nil
}
