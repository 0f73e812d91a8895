package manifest

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// LoadKeyring reads an armored OpenPGP public key ring.
func LoadKeyring(path string) (openpgp.EntityList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening signing key %s: %w", path, err)
	}
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("reading signing key %s: %w", path, err)
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("signing key %s holds no keys", path)
	}
	return keyring, nil
}

// VerifySignature checks an armored detached signature over data.
func VerifySignature(keyring openpgp.EntityList, data, armoredSig []byte) error {
	signer, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(armoredSig), nil)
	if err != nil {
		return fmt.Errorf("signature check failed: %w", err)
	}
	if signer == nil {
		return fmt.Errorf("signature check failed: no signer")
	}
	return nil
}
