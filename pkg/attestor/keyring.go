package attestor

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// Keyring holds Ed25519 keypairs for rotation support. Keys are derived
// deterministically from configured seeds and are never mutated or removed;
// rotation swaps the active kid and old kids stay verifiable.
type Keyring struct {
	mu        sync.RWMutex
	keys      map[string]*key
	activeKid string
}

type key struct {
	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewKeyring creates an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]*key)}
}

// FromSeedSpec builds a keyring from the ATTESTOR_SEEDS wire form
// "alg:kid:seed;alg:kid:seed;..." and marks activeKid active. When activeKid
// is empty the first entry becomes active.
func FromSeedSpec(spec, activeKid string) (*Keyring, error) {
	kr := NewKeyring()
	for _, entry := range strings.Split(spec, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("attestor: malformed seed entry %q", entry)
		}
		if err := kr.AddSeed(parts[0], parts[1], parts[2]); err != nil {
			return nil, err
		}
		if activeKid == "" {
			activeKid = parts[1]
		}
	}
	if len(kr.keys) == 0 {
		return nil, fmt.Errorf("attestor: no seeds configured")
	}
	if err := kr.SetActive(activeKid); err != nil {
		return nil, err
	}
	return kr, nil
}

// AddSeed derives an Ed25519 keypair from seed material: the private key seed
// is SHA-256 of the seed bytes. Re-adding an existing kid is an error; key
// material is immutable once inserted.
func (kr *Keyring) AddSeed(alg, kid, seed string) error {
	if alg != "ed25519" {
		return fmt.Errorf("attestor: unsupported algorithm %q for kid %q", alg, kid)
	}
	if kid == "" {
		return fmt.Errorf("attestor: empty kid")
	}
	digest := sha256.Sum256([]byte(seed))
	priv := ed25519.NewKeyFromSeed(digest[:])

	kr.mu.Lock()
	defer kr.mu.Unlock()
	if _, exists := kr.keys[kid]; exists {
		return fmt.Errorf("attestor: kid %q already present", kid)
	}
	kr.keys[kid] = &key{
		kid:  kid,
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}
	if kr.activeKid == "" {
		kr.activeKid = kid
	}
	return nil
}

// SetActive swaps the active kid. Only affects new signatures.
func (kr *Keyring) SetActive(kid string) error {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	if _, exists := kr.keys[kid]; !exists {
		return fmt.Errorf("attestor: unknown kid %q", kid)
	}
	kr.activeKid = kid
	return nil
}

// ActiveKid returns the current active key id.
func (kr *Keyring) ActiveKid() string {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return kr.activeKid
}

// active returns the active key under the read lock.
func (kr *Keyring) active() (*key, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	k, ok := kr.keys[kr.activeKid]
	if !ok {
		return nil, fmt.Errorf("attestor: no active key")
	}
	return k, nil
}

func (kr *Keyring) lookup(kid string) (*key, bool) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	k, ok := kr.keys[kid]
	return k, ok
}

// PublicKeys returns kid -> base64 verify key for every key ever added.
func (kr *Keyring) PublicKeys() map[string]string {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	out := make(map[string]string, len(kr.keys))
	for kid, k := range kr.keys {
		out[kid] = base64.StdEncoding.EncodeToString(k.pub)
	}
	return out
}

// PublicKey returns the base64 verify key for kid.
func (kr *Keyring) PublicKey(kid string) (string, bool) {
	k, ok := kr.lookup(kid)
	if !ok {
		return "", false
	}
	return base64.StdEncoding.EncodeToString(k.pub), true
}
