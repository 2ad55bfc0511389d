// Package tlsconf builds the TLS configurations for both directions of the
// robot's traffic: the inbound listener (a provisioned PEM certificate and
// key) and the outbound connection to the cloud control plane.
//
// For emulation, where no provisioned certificate exists, an ephemeral
// server identity is derived deterministically from the robot secret via
// HKDF, so restarts present a stable public key:
//
//	HKDF-SHA256(ikm=secret, salt="minirdk-tls-v1", info="server-key")
//	→ 64 bytes → reduced mod (N-1), plus 1, into [1, N-1] → deterministic ECDSA P-256 key
package tlsconf

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"time"

	"golang.org/x/crypto/hkdf"
	"google.golang.org/grpc/credentials"
)

// alpnH2 is the only protocol the robot listener speaks.
var alpnH2 = []string{"h2"}

// ServerConfig returns the listener TLS config for a PEM certificate chain
// and its matching private key.
func ServerConfig(certPEM, keyPEM []byte) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   alpnH2,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// EphemeralServerConfig returns a listener TLS config with a self-signed
// certificate whose key is derived from seed. Used under emulation when no
// provisioned certificate pair is configured.
func EphemeralServerConfig(seed string) (*tls.Config, error) {
	key, err := deriveKey(seed)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: derive key: %w", err)
	}
	certPEM, err := selfSignedCert(key)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: cert: %w", err)
	}
	keyPEM, err := marshalKey(key)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: marshal key: %w", err)
	}
	return ServerConfig(certPEM, keyPEM)
}

// CloudCredentials returns gRPC transport credentials for dialing the cloud
// control plane: system roots, hostname verification, ALPN h2.
func CloudCredentials(host string) credentials.TransportCredentials {
	return credentials.NewTLS(&tls.Config{
		ServerName: host,
		NextProtos: alpnH2,
		MinVersion: tls.VersionTLS12,
	})
}

// deriveKey derives a deterministic ECDSA P-256 private key from seed.
func deriveKey(seed string) (*ecdsa.PrivateKey, error) {
	r := hkdf.New(sha256.New, []byte(seed), []byte("minirdk-tls-v1"), []byte("server-key"))
	buf := make([]byte, 64)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("hkdf read: %w", err)
	}

	curve := elliptic.P256()
	N := curve.Params().N
	k := new(big.Int).SetBytes(buf)
	k.Mod(k, new(big.Int).Sub(N, big.NewInt(1)))
	k.Add(k, big.NewInt(1)) // ensure k ∈ [1, N-1]

	key := new(ecdsa.PrivateKey)
	key.PublicKey.Curve = curve
	key.D = k
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(k.Bytes())
	return key, nil
}

// selfSignedCert generates a self-signed certificate for key. The serial is
// random; only the key is stable across restarts.
func selfSignedCert(key *ecdsa.PrivateKey) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "minirdk"},
		DNSNames:              []string{"minirdk"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}), nil
}

func marshalKey(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}
