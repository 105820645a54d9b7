package mlts

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// Identity is the node's RSA-OAEP keypair, generated once at boot and
// immutable for the process lifetime.
type Identity struct {
	priv *rsa.PrivateKey
	pub  *rsa.PublicKey
}

// NewIdentity generates a fresh RSA keypair of the given bit size.
func NewIdentity(bits int) (*Identity, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("mlts: generate identity key: %w", err)
	}
	return &Identity{priv: priv, pub: &priv.PublicKey}, nil
}

// PublicKeyPEM returns the node's public key, PKIX/PEM encoded, for
// publication to peers.
func (id *Identity) PublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(id.pub)
	if err != nil {
		return "", fmt.Errorf("mlts: marshal public key: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// unwrapKey decrypts an RSA-OAEP(SHA-256, MGF1-SHA-256) wrapped
// payload using the node's private key.
func (id *Identity) unwrapKey(ciphertext []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, id.priv, ciphertext, nil)
}
