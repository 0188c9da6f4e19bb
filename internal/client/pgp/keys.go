// Package pgp wraps the OpenPGP engine used by the sharing core. It
// centralizes key parsing and state assertions so that no cryptographic call
// can be made with key material in the wrong form (public where private is
// required, locked where unlocked is required, and so on).
package pgp

import (
	"fmt"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/ProtonMail/gopenpgp/v2/crypto"

	"github.com/teamvault/sharecore/internal/common"
)

// KeyMaterial is the sum of the forms key material arrives in: armored text
// from the server or local storage, or a key already parsed by the engine.
// Every cryptographic entry point normalizes its inputs through AsPublicKey
// or AsUnlockedPrivateKey before touching the engine.
type KeyMaterial interface {
	material()
}

// ArmoredText is unparsed ASCII-armored key material.
type ArmoredText string

func (ArmoredText) material() {}

// PublicKey is a parsed key used for encryption or signature verification.
type PublicKey struct {
	Key *crypto.Key
}

func (PublicKey) material() {}

// PrivateKey is a parsed private key, locked or unlocked.
type PrivateKey struct {
	Key *crypto.Key
}

func (PrivateKey) material() {}

// ParsePublicKey parses armored text and requires it to be a public key.
func ParsePublicKey(armored string) (*crypto.Key, error) {
	key, err := crypto.NewKeyFromArmored(armored)
	if err != nil {
		return nil, fmt.Errorf("cannot parse armored text as an OpenPGP key: %w", common.ErrInvalidKey)
	}
	if key.IsPrivate() {
		return nil, fmt.Errorf("expected a public key, got a private key: %w", common.ErrInvalidKey)
	}
	return key, nil
}

// ParsePrivateKey parses armored text and requires it to be a private key.
// The key is not unlocked.
func ParsePrivateKey(armored string) (*crypto.Key, error) {
	key, err := crypto.NewKeyFromArmored(armored)
	if err != nil {
		return nil, fmt.Errorf("cannot parse armored text as an OpenPGP key: %w", common.ErrInvalidKey)
	}
	if !key.IsPrivate() {
		return nil, fmt.Errorf("expected a private key, got a public key: %w", common.ErrInvalidKey)
	}
	return key, nil
}

// AsPublicKey normalizes m into a key usable for encryption or verification.
// Private key material is rejected: callers who hold a private key must pass
// its public part explicitly rather than rely on implicit conversion.
func AsPublicKey(m KeyMaterial) (*crypto.Key, error) {
	switch v := m.(type) {
	case ArmoredText:
		return ParsePublicKey(string(v))
	case PublicKey:
		if v.Key == nil {
			return nil, fmt.Errorf("nil public key: %w", common.ErrKeyAssertion)
		}
		if v.Key.IsPrivate() {
			return nil, fmt.Errorf("private key passed where a public key is required: %w", common.ErrKeyAssertion)
		}
		return v.Key, nil
	case PrivateKey:
		return nil, fmt.Errorf("private key passed where a public key is required: %w", common.ErrKeyAssertion)
	default:
		return nil, fmt.Errorf("unsupported key material %T: %w", m, common.ErrKeyAssertion)
	}
}

// AsUnlockedPrivateKey normalizes m into a decrypted private key usable for
// signing or decryption. A still-locked key fails the assertion: this is the
// primary defense against signing with a locked key.
func AsUnlockedPrivateKey(m KeyMaterial) (*crypto.Key, error) {
	var key *crypto.Key

	switch v := m.(type) {
	case ArmoredText:
		parsed, err := ParsePrivateKey(string(v))
		if err != nil {
			return nil, err
		}
		key = parsed
	case PrivateKey:
		if v.Key == nil {
			return nil, fmt.Errorf("nil private key: %w", common.ErrKeyAssertion)
		}
		key = v.Key
	case PublicKey:
		return nil, fmt.Errorf("public key passed where a private key is required: %w", common.ErrKeyAssertion)
	default:
		return nil, fmt.Errorf("unsupported key material %T: %w", m, common.ErrKeyAssertion)
	}

	if !key.IsPrivate() {
		return nil, fmt.Errorf("expected a private key: %w", common.ErrKeyAssertion)
	}
	locked, err := key.IsLocked()
	if err != nil {
		return nil, fmt.Errorf("checking key lock state: %w", err)
	}
	if locked {
		return nil, fmt.Errorf("private key is still locked: %w", common.ErrKeyAssertion)
	}
	return key, nil
}

// UnlockState reports the outcome of an unlock attempt.
type UnlockState int

const (
	// Unlocked means the key was decrypted with the supplied passphrase
	// (or was not locked to begin with).
	Unlocked UnlockState = iota
	// PassphraseRequired means the supplied passphrase did not decrypt the
	// key and another attempt is needed. This is a value, not an error:
	// wrong passphrases are expected control flow.
	PassphraseRequired
)

// UnlockResult is the typed outcome of Unlock. Key is set only when State is
// Unlocked.
type UnlockResult struct {
	State UnlockState
	Key   *crypto.Key
}

// Unlock attempts to decrypt the private key with the given passphrase.
// A wrong passphrase is reported as PassphraseRequired; only malformed key
// material or engine failures produce an error. The input key is not
// modified; the unlocked copy in the result is independent.
func Unlock(key *crypto.Key, passphrase []byte) (UnlockResult, error) {
	if key == nil || !key.IsPrivate() {
		return UnlockResult{}, fmt.Errorf("unlock requires a private key: %w", common.ErrKeyAssertion)
	}

	locked, err := key.IsLocked()
	if err != nil {
		return UnlockResult{}, fmt.Errorf("checking key lock state: %w", err)
	}
	if !locked {
		return UnlockResult{State: Unlocked, Key: key}, nil
	}

	unlocked, err := key.Unlock(passphrase)
	if err != nil {
		return UnlockResult{State: PassphraseRequired}, nil
	}
	return UnlockResult{State: Unlocked, Key: unlocked}, nil
}

// EntryInfo describes a parsed key for keyring bookkeeping.
type EntryInfo struct {
	Fingerprint string
	KeyID       string
	Algorithm   string
	CreatedAt   time.Time
	ExpiresAt   time.Time // zero when the key does not expire
}

// Info extracts cache metadata from a parsed key.
func Info(key *crypto.Key) EntryInfo {
	info := EntryInfo{
		Fingerprint: key.GetFingerprint(),
		KeyID:       key.GetHexKeyID(),
	}

	entity := key.GetEntity()
	if entity == nil || entity.PrimaryKey == nil {
		return info
	}

	info.Algorithm = algorithmName(entity.PrimaryKey.PubKeyAlgo)
	info.CreatedAt = entity.PrimaryKey.CreationTime

	for _, ident := range entity.Identities {
		if ident.SelfSignature == nil || ident.SelfSignature.KeyLifetimeSecs == nil {
			continue
		}
		lifetime := time.Duration(*ident.SelfSignature.KeyLifetimeSecs) * time.Second
		info.ExpiresAt = info.CreatedAt.Add(lifetime)
		break
	}

	return info
}

func algorithmName(algo packet.PublicKeyAlgorithm) string {
	switch algo {
	case packet.PubKeyAlgoRSA, packet.PubKeyAlgoRSAEncryptOnly, packet.PubKeyAlgoRSASignOnly:
		return "rsa"
	case packet.PubKeyAlgoDSA:
		return "dsa"
	case packet.PubKeyAlgoElGamal:
		return "elgamal"
	case packet.PubKeyAlgoECDH:
		return "ecdh"
	case packet.PubKeyAlgoECDSA:
		return "ecdsa"
	case packet.PubKeyAlgoEdDSA:
		return "eddsa"
	default:
		return fmt.Sprintf("unknown(%d)", algo)
	}
}
