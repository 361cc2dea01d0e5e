package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shipspine/node/certs"
)

// genCreds builds a self-signed EC certificate/key pair with a correct
// Subject Key Identifier extension, mirroring the certs package's own
// test fixture generation.
func genCreds(t *testing.T) *certs.Credentials {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-node"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	firstPass, err := certs.ParseX509KeyPair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("ParseX509KeyPair: %v", err)
	}
	skiBytes, err := hex.DecodeString(firstPass.Ski)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	tmpl.SubjectKeyId = skiBytes
	der, err = x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("CreateCertificate (stamped): %v", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	creds, err := certs.ParseX509KeyPair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("ParseX509KeyPair (stamped): %v", err)
	}
	return creds
}

func TestDialClientAgainstListenServer(t *testing.T) {
	serverCreds := genCreds(t)
	clientCreds := genCreds(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	accepted := make(chan string, 1)
	go ListenServer(ln, serverCreds, func(ski string) error {
		if ski != clientCreds.Ski {
			return fmt.Errorf("unexpected client ski %s", ski)
		}
		return nil
	}, func(conn *websocket.Conn, peerSki string) {
		accepted <- peerSki
		conn.Close()
	})
	defer ln.Close()

	conn, err := DialClient(ln.Addr().String(), clientCreds, func(ski string) error {
		if ski != serverCreds.Ski {
			return fmt.Errorf("unexpected server ski %s", ski)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("DialClient: %v", err)
	}
	defer conn.Close()

	select {
	case got := <-accepted:
		if got != clientCreds.Ski {
			t.Fatalf("server saw client ski %q, want %q", got, clientCreds.Ski)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for server to accept connection")
	}
}

func TestDialClientRejectsUnexpectedServerSki(t *testing.T) {
	serverCreds := genCreds(t)
	clientCreds := genCreds(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	go ListenServer(ln, serverCreds, nil, func(conn *websocket.Conn, _ string) { conn.Close() })

	_, err = DialClient(ln.Addr().String(), clientCreds, func(ski string) error {
		return fmt.Errorf("refusing every server ski in this test")
	})
	if err == nil {
		t.Fatalf("expected dial to fail when the client rejects the server's ski")
	}
}
