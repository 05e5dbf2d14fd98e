package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gtank/cryptopasta"
)

// MinKeyLength is the shortest secret EncryptedFile accepts.
const MinKeyLength = 16

// ErrBadSignature means the token file was modified or the key is wrong.
var ErrBadSignature = errors.New("token file signature mismatch")

// EncryptedFile stores the token AES-GCM encrypted and HMAC signed in a
// single 0600 file. The file body is "<ciphertext>.<signature>", both
// base64url without padding.
type EncryptedFile struct {
	path   string
	encKey *[32]byte
	sigKey *[32]byte

	mu sync.Mutex
}

// NewEncryptedFile returns a store at path keyed by secret. Encryption
// and signing keys are derived from secret separately.
func NewEncryptedFile(path, secret string) (*EncryptedFile, error) {
	if path == "" {
		return nil, errors.New("token file path is empty")
	}
	if len(secret) < MinKeyLength {
		return nil, fmt.Errorf("token key too short: want at least %d characters", MinKeyLength)
	}
	return &EncryptedFile{
		path:   path,
		encKey: deriveKey("talkcents token encryption", secret),
		sigKey: deriveKey("talkcents token signature", secret),
	}, nil
}

// NewKey returns a random secret suitable for NewEncryptedFile.
func NewKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func deriveKey(tag, secret string) *[32]byte {
	key := &[32]byte{}
	copy(key[:], cryptopasta.Hash(tag, []byte(secret)))
	return key
}

// Path returns the token file location.
func (f *EncryptedFile) Path() string {
	return f.path
}

func (f *EncryptedFile) Get(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}

	body := strings.TrimSpace(string(data))
	if body == "" {
		return "", ErrNoToken
	}
	plain, err := f.open(body)
	if err != nil {
		return "", err
	}
	if len(plain) == 0 {
		return "", ErrNoToken
	}
	return string(plain), nil
}

// Token implements api.TokenSource.
func (f *EncryptedFile) Token(ctx context.Context) (string, error) {
	return f.Get(ctx)
}

func (f *EncryptedFile) Set(_ context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("refusing to store an empty token")
	}

	sealed, err := f.seal([]byte(token))
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sealed+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

func (f *EncryptedFile) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

func (f *EncryptedFile) seal(plain []byte) (string, error) {
	cipher, err := cryptopasta.Encrypt(plain, f.encKey)
	if err != nil {
		return "", fmt.Errorf("encrypting token: %w", err)
	}
	sig := cryptopasta.GenerateHMAC(cipher, f.sigKey)
	return base64.RawURLEncoding.EncodeToString(cipher) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

func (f *EncryptedFile) open(sealed string) ([]byte, error) {
	parts := strings.SplitN(sealed, ".", 2)
	if len(parts) != 2 {
		return nil, errors.New("token file is malformed")
	}
	cipher, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decoding token ciphertext: %w", err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding token signature: %w", err)
	}
	if !cryptopasta.CheckHMAC(cipher, sig, f.sigKey) {
		return nil, ErrBadSignature
	}
	plain, err := cryptopasta.Decrypt(cipher, f.encKey)
	if err != nil {
		return nil, fmt.Errorf("decrypting token: %w", err)
	}
	return plain, nil
}
