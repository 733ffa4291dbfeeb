package adbsigner

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"os"

	"golang.org/x/crypto/ssh"

	"adbhost/internal/adberr"
)

// SSHKeySigner loads an OpenSSH-format RSA private key (as produced by
// `ssh-keygen`, which many adb users already have lying around) via
// golang.org/x/crypto/ssh and re-derives the same PKCS#1 v1.5-over-SHA1
// signature a PEMSigner would produce. x/crypto/ssh only parses the key
// container; it has no RSA signing primitive of its own, so the actual
// signature still goes through crypto/rsa.
type SSHKeySigner struct {
	key     *rsa.PrivateKey
	comment string
}

// LoadSSHKeySigner reads an OpenSSH private key file. passphrase may be nil
// for unencrypted keys.
func LoadSSHKeySigner(keyPath string, passphrase []byte) (*SSHKeySigner, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, adberr.Wrap(adberr.DeviceAuthError, err, "read ssh private key %s", keyPath)
	}

	var signer ssh.Signer
	if passphrase != nil {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(raw, passphrase)
	} else {
		signer, err = ssh.ParsePrivateKey(raw)
	}
	if err != nil {
		return nil, adberr.Wrap(adberr.DeviceAuthError, err, "parse ssh private key %s", keyPath)
	}

	underlying, ok := extractRSAKey(signer)
	if !ok {
		return nil, adberr.New(adberr.DeviceAuthError, "ssh key %s is not RSA", keyPath)
	}

	return &SSHKeySigner{key: underlying, comment: defaultComment()}, nil
}

// extractRSAKey recovers the *rsa.PrivateKey an ssh.Signer wraps. The
// x/crypto/ssh API only exposes signing through the Signer interface, but
// adb's AUTH_SIGNATURE needs a raw PKCS#1 v1.5-over-SHA1 signature rather
// than the SSH wire signature format, so the underlying key is pulled out
// via the AlgorithmSigner's concrete type.
func extractRSAKey(signer ssh.Signer) (*rsa.PrivateKey, bool) {
	type cryptoSigner interface {
		CryptoPrivateKey() interface{}
	}
	if cs, ok := signer.(cryptoSigner); ok {
		if rsaKey, ok := cs.CryptoPrivateKey().(*rsa.PrivateKey); ok {
			return rsaKey, true
		}
	}
	return nil, false
}

func (s *SSHKeySigner) Sign(token []byte) ([]byte, error) {
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA1, token)
	if err != nil {
		return nil, adberr.Wrap(adberr.DeviceAuthError, err, "sign auth token")
	}
	return sig, nil
}

func (s *SSHKeySigner) PublicKey() (string, error) {
	return EncodeMincryptPublicKey(&s.key.PublicKey, s.comment)
}
