// Package secrets seals credentials with age so that the transport token
// can sit in .env or config.jsonc as an ENC[age:...] blob.
package secrets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"github.com/dohr-michael/nudge/internal/config"
	"github.com/dohr-michael/nudge/internal/storage"
)

const (
	encPrefix = "ENC[age:"
	encSuffix = "]"
)

// ErrNotSealed is returned when opening a value that is not an ENC[age:...] blob.
var ErrNotSealed = errors.New("value is not sealed")

// KeyPath returns the default age key file path: $NUDGE_PATH/.age-key.
func KeyPath() string {
	return filepath.Join(config.NudgePath(), ".age-key")
}

// Keyring holds the X25519 identity used to seal and open secrets.
type Keyring struct {
	identity *age.X25519Identity
}

// OpenKeyring loads the identity at path. With create set, a missing key
// file is generated first (0o600).
func OpenKeyring(path string, create bool) (*Keyring, error) {
	if create {
		if err := generateIdentity(path); err != nil {
			return nil, err
		}
	}
	id, err := loadIdentity(path)
	if err != nil {
		return nil, err
	}
	return &Keyring{identity: id}, nil
}

// Recipient returns the public key matching the identity.
func (k *Keyring) Recipient() string {
	return k.identity.Recipient().String()
}

// Seal encrypts plaintext and returns an ENC[age:...] blob.
func (k *Keyring) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, k.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("age encrypt init: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("age encrypt write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("age encrypt close: %w", err)
	}
	return encPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()) + encSuffix, nil
}

// Open decrypts an ENC[age:...] blob.
func (k *Keyring) Open(blob string) (string, error) {
	if !IsSealed(blob) {
		return "", ErrNotSealed
	}

	ciphertext, err := base64.StdEncoding.DecodeString(blob[len(encPrefix) : len(blob)-len(encSuffix)])
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), k.identity)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read decrypted: %w", err)
	}
	return string(plain), nil
}

// IsSealed reports whether s is an ENC[age:...] blob.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, encPrefix) && strings.HasSuffix(s, encSuffix)
}

// Resolve returns value as-is when it is plain text, or opened with the key
// at keyPath when sealed.
func Resolve(value, keyPath string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	kr, err := OpenKeyring(keyPath, false)
	if err != nil {
		return "", fmt.Errorf("resolve secret: %w", err)
	}
	plain, err := kr.Open(value)
	if err != nil {
		return "", fmt.Errorf("resolve secret: %w", err)
	}
	return plain, nil
}

// generateIdentity writes a fresh key to path unless one already exists.
func generateIdentity(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generate age identity: %w", err)
	}
	content := fmt.Sprintf("# created by nudge\n# public key: %s\n%s\n",
		identity.Recipient().String(), identity.String())

	if err := storage.WriteFileAtomic(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write age key: %w", err)
	}
	return nil
}

func loadIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open age key: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse age identities: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in %s", path)
	}
	id, ok := identities[0].(*age.X25519Identity)
	if !ok {
		return nil, fmt.Errorf("unexpected identity type in %s", path)
	}
	return id, nil
}
