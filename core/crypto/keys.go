// Package crypto holds the node's signing keys and the field cipher used
// for data at rest.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	PrivKeyFile = "node_ed25519.priv"
	PubKeyFile  = "node_ed25519.pub"

	// SignerKeyEnv holds a hex Ed25519 seed or private key.
	SignerKeyEnv = "HEALTHLEDGER_SIGNER_PRIVKEY"
)

// KeyPair is an Ed25519 signing identity.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// KeyLoader supplies the node key from some source.
type KeyLoader interface {
	LoadKeyPair() (KeyPair, error)
}

// FileKeyLoader keeps hex-encoded keys in Dir, generating them on first use.
type FileKeyLoader struct {
	Dir string
}

func (l FileKeyLoader) LoadKeyPair() (KeyPair, error) {
	return LoadOrGenerateKeypair(l.Dir)
}

// EnvKeyLoader reads the key from an environment variable.
type EnvKeyLoader struct {
	// Var defaults to SignerKeyEnv.
	Var string
}

func (l EnvKeyLoader) LoadKeyPair() (KeyPair, error) {
	name := l.Var
	if name == "" {
		name = SignerKeyEnv
	}
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return KeyPair{}, fmt.Errorf("%s not set in environment", name)
	}
	return ParsePrivateKey(v)
}

// ParsePrivateKey accepts a hex seed (32 bytes) or full private key (64 bytes).
func ParsePrivateKey(s string) (KeyPair, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return KeyPair{}, fmt.Errorf("decode private key: %w", err)
	}
	var priv ed25519.PrivateKey
	switch len(b) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(b)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(b)
	default:
		return KeyPair{}, fmt.Errorf("private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(b))
	}
	return KeyPair{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
}

// GenerateKeyPair creates a fresh random key pair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// LoadOrGenerateKeypair loads the key pair from dir, creating and saving
// one if the private key file does not exist.
func LoadOrGenerateKeypair(dir string) (KeyPair, error) {
	privPath := filepath.Join(dir, PrivKeyFile)
	privHex, err := os.ReadFile(privPath)
	if err == nil {
		kp, err := ParsePrivateKey(string(privHex))
		if err != nil {
			return KeyPair{}, fmt.Errorf("%s: %w", privPath, err)
		}
		return kp, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return KeyPair{}, err
	}

	kp, err := GenerateKeyPair()
	if err != nil {
		return KeyPair{}, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return KeyPair{}, err
	}
	if err := os.WriteFile(privPath, []byte(hex.EncodeToString(kp.Private)), 0o600); err != nil {
		return KeyPair{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, PubKeyFile), []byte(hex.EncodeToString(kp.Public)), 0o644); err != nil {
		return KeyPair{}, err
	}
	return kp, nil
}

// Sign signs msg with priv.
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify checks sig over msg against pub.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// VerifyHex is Verify for hex-encoded key and signature.
func VerifyHex(pubHex string, msg []byte, sigHex string) bool {
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	return Verify(ed25519.PublicKey(pub), msg, sig)
}
