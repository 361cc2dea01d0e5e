// Package certs loads the X.509 certificate/private key pair a node
// authenticates with and derives its SKI (Subject Key Identifier), the
// value SHIP's connectionHello and the TLS mutual-auth handshake use to
// recognize a remote peer.
package certs

import (
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/shipspine/node/eerr"
)

// Credentials bundles the parsed key pair with its derived SKI. Ski is
// lowercase hex, no separators, matching the wire form SHIP's
// connectionHello carries.
type Credentials struct {
	KeyPair tls.Certificate
	Leaf    *x509.Certificate
	Ski     string
}

// LoadX509KeyPair reads a PEM certificate and private key from disk,
// computes the SKI from the certificate's SubjectPublicKeyInfo, and
// cross-checks it against the certificate's own Subject Key Identifier
// extension when present.
func LoadX509KeyPair(certFile, keyFile string) (*Credentials, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", eerr.ErrFileSystemNoFile, certFile, err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", eerr.ErrFileSystemNoFile, keyFile, err)
	}
	return ParseX509KeyPair(certPEM, keyPEM)
}

// ParseX509KeyPair parses a certificate and private key from PEM bytes
// already in memory. The original implementation left its equivalent
// entry point an unimplemented stub; credentials provisioned by a
// secrets manager rather than the filesystem are common enough in Go
// deployments that it is worth actually implementing here.
func ParseX509KeyPair(certPEM, keyPEM []byte) (*Credentials, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found in certificate", eerr.ErrParse)
	}
	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing certificate: %v", eerr.ErrParse, err)
	}

	keyPair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: loading key pair: %v", eerr.ErrInit, err)
	}

	ski, err := calcSubjectKeyID(leaf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", eerr.ErrInit, err)
	}
	if stored, ok := storedSubjectKeyID(leaf); ok && stored != ski {
		return nil, fmt.Errorf("%w: computed ski %s does not match certificate's subjectKeyIdentifier %s", eerr.ErrInit, ski, stored)
	}

	return &Credentials{KeyPair: keyPair, Leaf: leaf, Ski: ski}, nil
}

// calcSubjectKeyID hashes the certificate's SubjectPublicKeyInfo bit
// string with SHA-1 and renders it as lowercase hex, the same
// computation the original used for its "method 1" Subject Key
// Identifier (RFC 5280 §4.2.1.2).
func calcSubjectKeyID(cert *x509.Certificate) (string, error) {
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(cert.RawSubjectPublicKeyInfo, &spki); err != nil {
		return "", fmt.Errorf("unmarshalling subjectPublicKeyInfo: %w", err)
	}
	sum := sha1.Sum(spki.PublicKey.RightAlign())
	return hex.EncodeToString(sum[:]), nil
}

// storedSubjectKeyID extracts the Subject Key Identifier extension
// already present on the certificate, if any. The extension's DER
// value is an OCTET STRING wrapping the raw key id bytes.
func storedSubjectKeyID(cert *x509.Certificate) (string, bool) {
	if len(cert.SubjectKeyId) == 0 {
		return "", false
	}
	return hex.EncodeToString(cert.SubjectKeyId), true
}

// CalcPublicKeySki derives the SKI of a DER-encoded certificate without
// requiring the matching private key, for computing a remote peer's
// expected SKI from a certificate it presents during the TLS handshake.
func CalcPublicKeySki(der []byte) (string, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return "", fmt.Errorf("%w: %v", eerr.ErrParse, err)
	}
	return calcSubjectKeyID(cert)
}
