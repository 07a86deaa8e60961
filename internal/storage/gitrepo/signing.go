package gitrepo

import (
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/ChuLiYu/git-queue/pkg/types"
)

// ReadKeyring loads an ASCII armored keyring (public and secret keys), as
// produced by `gpg --export-secret-keys --armor`.
func ReadKeyring(path string) (openpgp.EntityList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gitrepo: open keyring: %w", err)
	}
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("gitrepo: read keyring %s: %w", path, err)
	}
	return keyring, nil
}

// signingEntity picks the keyring entity owning id and unlocks its private keys.
func (r *Repository) signingEntity(id types.SigningKeyID) (*openpgp.Entity, error) {
	for _, entity := range r.keyring {
		if entity.PrivateKey == nil || !ownsKey(entity, id) {
			continue
		}
		if err := r.unlock(entity); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSigningKeyLocked, id, err)
		}
		return entity, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSigningKeyNotFound, id)
}

// ownsKey matches id against the primary key and every subkey. Short ids
// compare the low 32 bits only.
func ownsKey(entity *openpgp.Entity, id types.SigningKeyID) bool {
	matches := func(key *packet.PublicKey) bool {
		if key == nil {
			return false
		}
		if id.IsShort() {
			return uint32(key.KeyId) == uint32(id.KeyID())
		}
		return key.KeyId == id.KeyID()
	}

	if matches(entity.PrimaryKey) {
		return true
	}
	for _, sub := range entity.Subkeys {
		if matches(sub.PublicKey) {
			return true
		}
	}
	return false
}

func (r *Repository) unlock(entity *openpgp.Entity) error {
	keys := []*packet.PrivateKey{entity.PrivateKey}
	for _, sub := range entity.Subkeys {
		keys = append(keys, sub.PrivateKey)
	}
	for _, key := range keys {
		if key == nil || !key.Encrypted {
			continue
		}
		if err := key.Decrypt(r.passphrase); err != nil {
			return err
		}
	}
	return nil
}
