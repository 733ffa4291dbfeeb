package adbsigner

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func writePKCS1PEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	path := filepath.Join(t.TempDir(), "adbkey")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write pem: %v", err)
	}
	return path
}

func writePKCS8PEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	path := filepath.Join(t.TempDir(), "adbkey")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write pem: %v", err)
	}
	return path
}

func TestLoadPEMSignerAcceptsPKCS1(t *testing.T) {
	key := testKey(t)
	path := writePKCS1PEM(t, key)

	signer, err := LoadPEMSigner(path)
	if err != nil {
		t.Fatalf("LoadPEMSigner: %v", err)
	}
	if signer.key.N.Cmp(key.N) != 0 {
		t.Error("loaded key modulus doesn't match original")
	}
}

func TestLoadPEMSignerAcceptsPKCS8(t *testing.T) {
	key := testKey(t)
	path := writePKCS8PEM(t, key)

	if _, err := LoadPEMSigner(path); err != nil {
		t.Fatalf("LoadPEMSigner: %v", err)
	}
}

func TestLoadPEMSignerRejectsMissingFile(t *testing.T) {
	if _, err := LoadPEMSigner(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("LoadPEMSigner on missing file: want error, got nil")
	}
}

func TestLoadPEMSignerRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adbkey")
	if err := os.WriteFile(path, []byte("not a pem file"), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if _, err := LoadPEMSigner(path); err == nil {
		t.Fatal("LoadPEMSigner on non-PEM data: want error, got nil")
	}
}

func TestPEMSignerSignProducesVerifiableSignature(t *testing.T) {
	key := testKey(t)
	path := writePKCS1PEM(t, key)

	signer, err := LoadPEMSigner(path)
	if err != nil {
		t.Fatalf("LoadPEMSigner: %v", err)
	}

	token := make([]byte, 20)
	if _, err := rand.Read(token); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	sig, err := signer.Sign(token)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA1, token, sig); err != nil {
		t.Errorf("VerifyPKCS1v15: %v", err)
	}
}

func TestPEMSignerPublicKeyMatchesPrivateKey(t *testing.T) {
	key := testKey(t)
	path := writePKCS1PEM(t, key)

	signer, err := LoadPEMSigner(path)
	if err != nil {
		t.Fatalf("LoadPEMSigner: %v", err)
	}

	encoded, err := signer.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	want, err := EncodeMincryptPublicKey(&key.PublicKey, signer.comment)
	if err != nil {
		t.Fatalf("EncodeMincryptPublicKey: %v", err)
	}
	if encoded != want {
		t.Error("PublicKey() doesn't match directly-encoded public key")
	}
}
