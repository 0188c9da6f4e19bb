package pgp

import (
	"errors"
	"fmt"

	"github.com/ProtonMail/gopenpgp/v2/crypto"

	"github.com/teamvault/sharecore/internal/common"
)

// Service implements the message-level encrypt/decrypt/sign/verify
// primitives over the OpenPGP engine. It is stateless; all key material is
// passed per call and normalized through the assertions in keys.go.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Encrypt produces an armored ciphertext encrypted to one or more recipients
// and signed by zero or more private keys. Fails with ErrKeyAssertion if a
// signer is not an unlocked private key or a recipient is not a public key.
func (s *Service) Encrypt(plaintext string, recipients []KeyMaterial, signers []KeyMaterial) (string, error) {
	if len(recipients) == 0 {
		return "", fmt.Errorf("at least one recipient is required: %w", common.ErrInvalidArgument)
	}

	recipKR, err := crypto.NewKeyRing(nil)
	if err != nil {
		return "", fmt.Errorf("creating recipient keyring: %w", err)
	}
	for _, r := range recipients {
		key, err := AsPublicKey(r)
		if err != nil {
			return "", err
		}
		if err := recipKR.AddKey(key); err != nil {
			return "", fmt.Errorf("adding recipient key: %w", err)
		}
	}

	var signKR *crypto.KeyRing
	if len(signers) > 0 {
		signKR, err = crypto.NewKeyRing(nil)
		if err != nil {
			return "", fmt.Errorf("creating signing keyring: %w", err)
		}
		for _, sk := range signers {
			key, err := AsUnlockedPrivateKey(sk)
			if err != nil {
				return "", err
			}
			if err := signKR.AddKey(key); err != nil {
				return "", fmt.Errorf("adding signing key: %w", err)
			}
		}
	}

	msg, err := recipKR.Encrypt(crypto.NewPlainMessageFromString(plaintext), signKR)
	if err != nil {
		return "", fmt.Errorf("encrypting message: %w", err)
	}

	armored, err := msg.GetArmored()
	if err != nil {
		return "", fmt.Errorf("armoring message: %w", err)
	}
	return armored, nil
}

// Decrypt decrypts an armored ciphertext with the given private key. When
// verifiers are supplied, at least one signature must check out against one
// of them or the call fails with ErrBadSignature.
func (s *Service) Decrypt(armored string, decryption KeyMaterial, verifiers []KeyMaterial) (string, error) {
	key, err := AsUnlockedPrivateKey(decryption)
	if err != nil {
		return "", err
	}

	msg, err := crypto.NewPGPMessageFromArmored(armored)
	if err != nil {
		return "", fmt.Errorf("parsing armored message: %w", err)
	}

	decKR, err := crypto.NewKeyRing(key)
	if err != nil {
		return "", fmt.Errorf("creating decryption keyring: %w", err)
	}

	var verifyKR *crypto.KeyRing
	if len(verifiers) > 0 {
		verifyKR, err = crypto.NewKeyRing(nil)
		if err != nil {
			return "", fmt.Errorf("creating verification keyring: %w", err)
		}
		for _, v := range verifiers {
			vk, err := AsPublicKey(v)
			if err != nil {
				return "", err
			}
			if err := verifyKR.AddKey(vk); err != nil {
				return "", fmt.Errorf("adding verification key: %w", err)
			}
		}
	}

	plain, err := decKR.Decrypt(msg, verifyKR, crypto.GetUnixTime())
	if err != nil {
		var sigErr crypto.SignatureVerificationError
		if errors.As(err, &sigErr) {
			return "", fmt.Errorf("no valid signature from any verification key: %w", common.ErrBadSignature)
		}
		return "", fmt.Errorf("decrypting message: %w", err)
	}

	return plain.GetString(), nil
}
