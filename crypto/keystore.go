package crypto

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

// KeyFile encrypts staking identities into v3 keystore files. The scrypt
// parameters trade unlock latency for brute-force cost.
type KeyFile struct {
	ScryptN int
	ScryptP int
}

// StandardKeyFile uses the production scrypt cost.
var StandardKeyFile = KeyFile{ScryptN: keystore.StandardScryptN, ScryptP: keystore.StandardScryptP}

// LightKeyFile is cheap to unlock and meant for tests and throwaway identities.
var LightKeyFile = KeyFile{ScryptN: keystore.LightScryptN, ScryptP: keystore.LightScryptP}

// Save encrypts key under passphrase and writes it to path with 0600
// permissions. An existing file is replaced.
func (kf KeyFile) Save(path string, key *PrivateKey, passphrase string) error {
	if key == nil || key.PrivateKey == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty key file path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	// The keystore names its own files, so encrypt into a scratch directory
	// and move the single result into place.
	scratch, err := os.MkdirTemp(dir, ".keyfile-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	ks := keystore.NewKeyStore(scratch, kf.ScryptN, kf.ScryptP)
	account, err := ks.ImportECDSA(key.PrivateKey, passphrase)
	if err != nil {
		return fmt.Errorf("crypto: encrypt key: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(account.URL.Path, path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// LoadKeyFile decrypts the identity stored at path.
func LoadKeyFile(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty key file path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(raw, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt %s: %w", filepath.Base(path), err)
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
