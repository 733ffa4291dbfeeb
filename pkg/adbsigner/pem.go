package adbsigner

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"os/user"

	"adbhost/internal/adberr"
)

// PEMSigner loads an RSA private key from a PKCS#1 or PKCS#8 PEM file (the
// format `adb keygen` and `ssh-keygen -m PEM` both produce) and signs
// tokens with PKCS#1 v1.5 over a SHA-1 digest, treating the token itself as
// already-hashed input the way real Android devices expect — the signer
// never hashes the token again, it only wraps it in PKCS#1 v1.5 padding
// tagged for SHA-1. This matches the CryptographySigner variant that real
// devices accept.
type PEMSigner struct {
	key     *rsa.PrivateKey
	comment string
}

// LoadPEMSigner reads the private key at keyPath. keyPath+".pub" is not
// read: the public key sent over the wire is always re-derived from the
// private key, and its comment is the current "user@host".
func LoadPEMSigner(keyPath string) (*PEMSigner, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, adberr.Wrap(adberr.DeviceAuthError, err, "read private key %s", keyPath)
	}

	key, err := parsePrivateKeyPEM(raw)
	if err != nil {
		return nil, adberr.Wrap(adberr.DeviceAuthError, err, "parse private key %s", keyPath)
	}

	return &PEMSigner{key: key, comment: defaultComment()}, nil
}

func parsePrivateKeyPEM(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	generic, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("unsupported private key encoding: %w", err)
	}
	rsaKey, ok := generic.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}

func defaultComment() string {
	host, _ := os.Hostname()
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "unknown@" + host
	}
	return u.Username + "@" + host
}

// Sign implements Signer. token is the raw 20-byte value a device sent in
// its AUTH_TOKEN packet; it is signed as a pre-hashed SHA-1 digest, never
// hashed again.
func (s *PEMSigner) Sign(token []byte) ([]byte, error) {
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA1, token)
	if err != nil {
		return nil, adberr.Wrap(adberr.DeviceAuthError, err, "sign auth token")
	}
	return sig, nil
}

// PublicKey implements Signer.
func (s *PEMSigner) PublicKey() (string, error) {
	return EncodeMincryptPublicKey(&s.key.PublicKey, s.comment)
}
