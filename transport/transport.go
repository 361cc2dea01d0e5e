// Package transport establishes the TLS 1.2 WebSocket duplex a SHIP
// connection runs over: mutual X.509 authentication keyed by SKI, the
// fixed cipher set, and the "ship" sub-protocol negotiation. It knows
// nothing about SHIP framing or the SME; it hands the caller a ready
// *websocket.Conn.
package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shipspine/node/certs"
	"github.com/shipspine/node/eerr"
)

// SubProtocol is the WebSocket sub-protocol name SHIP connections negotiate.
const SubProtocol = "ship"

// handshakeDeadline bounds DialClient's TLS+WebSocket handshake, mirroring
// the negotiation deadline the teacher's router applies to its own
// subprotocol handshake. ListenServer applies no such deadline.
const handshakeDeadline = 5 * time.Second

// cipherSuites is the fixed set §6 names. Go's crypto/tls does not
// implement AES-128-CCM suites (only CCM8 with AEAD tag truncation the
// stdlib never shipped), so ECDHE-ECDSA-AES128-CCM8 has no Go-side
// equivalent; the two GCM/CBC suites it does support are pinned here and
// the gap is documented rather than silently ignored.
var cipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256,
}

// SkiVerifier is satisfied by code that knows which remote SKI a dial or
// accept is allowed to complete with; the cmd/ drivers supply one that
// compares the peer's SKI against their configured remote SKI.
type SkiVerifier func(peerSki string) error

// tlsConfigFor builds the shared TLS 1.2 mutual-auth config. Both client
// and server sides require the peer to present a certificate and verify
// it by SKI rather than CA chain, so there is nothing direction-specific
// left to configure.
func tlsConfigFor(creds *certs.Credentials, verify SkiVerifier) *tls.Config {
	cfg := &tls.Config{
		Certificates:       []tls.Certificate{creds.KeyPair},
		MinVersion:         tls.VersionTLS12,
		MaxVersion:         tls.VersionTLS12,
		CipherSuites:       cipherSuites,
		InsecureSkipVerify: true, // SHIP peers authenticate by SKI, not CA chain
		ClientAuth:         tls.RequireAnyClientCert,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*tls.Certificate) error {
			if len(rawCerts) == 0 {
				return fmt.Errorf("%w: peer presented no certificate", eerr.ErrInit)
			}
			peerSki, err := certs.CalcPublicKeySki(rawCerts[0])
			if err != nil {
				return fmt.Errorf("%w: %v", eerr.ErrInit, err)
			}
			if verify != nil {
				if err := verify(peerSki); err != nil {
					return fmt.Errorf("%w: %v", eerr.ErrInit, err)
				}
			}
			return nil
		},
	}
	return cfg
}

// DialClient connects to addr (a ws(s)://host:port/ship form URI, or a
// bare host:port which is treated as wss://host:port/ship) over TLS 1.2,
// presenting creds, and negotiates the "ship" sub-protocol. verify is
// called with the remote's computed SKI during the handshake; a non-nil
// return aborts the connection before any SHIP bytes are exchanged.
func DialClient(addr string, creds *certs.Credentials, verify SkiVerifier) (*websocket.Conn, error) {
	uri := addr
	if !hasScheme(uri) {
		uri = "wss://" + uri + "/ship"
	}

	dialer := websocket.Dialer{
		TLSClientConfig:  tlsConfigFor(creds, verify),
		Subprotocols:     []string{SubProtocol},
		HandshakeTimeout: handshakeDeadline,
	}

	conn, resp, err := dialer.Dial(uri, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, fmt.Errorf("%w: dial %s: bad status %d", eerr.ErrInit, uri, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", eerr.ErrInit, uri, err)
	}
	if conn.Subprotocol() != SubProtocol {
		conn.Close()
		return nil, fmt.Errorf("%w: peer did not accept %q sub-protocol", eerr.ErrInit, SubProtocol)
	}
	return conn, nil
}

func hasScheme(addr string) bool {
	for i := 0; i < len(addr); i++ {
		switch addr[i] {
		case ':':
			return i+2 < len(addr) && addr[i+1] == '/' && addr[i+2] == '/'
		case '/', '.':
			return false
		}
	}
	return false
}

// Handler is invoked once per accepted connection that successfully
// negotiates the "ship" sub-protocol and passes SKI verification.
type Handler func(conn *websocket.Conn, peerSki string)

// ListenServer serves ln, upgrading every request offering the "ship"
// sub-protocol to a TLS 1.2 WebSocket and invoking handler once the
// handshake (including SKI verification via verify) completes. It blocks
// until serving stops; once ln is closed it returns the listener's accept
// error. The
// caller owns ln's lifecycle (creation, port choice, closing it to stop
// serving), which also makes this directly testable against an ephemeral
// port.
func ListenServer(ln net.Listener, creds *certs.Credentials, verify SkiVerifier, handler Handler) error {
	upgrader := websocket.Upgrader{
		Subprotocols: []string{SubProtocol},
		CheckOrigin:  func(r *http.Request) bool { return true },
	}

	tlsCfg := tlsConfigFor(creds, verify)

	mux := http.NewServeMux()
	mux.HandleFunc("/ship", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if conn.Subprotocol() != SubProtocol {
			conn.Close()
			return
		}
		var peerSki string
		if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
			if ski, err := certs.CalcPublicKeySki(r.TLS.PeerCertificates[0].Raw); err == nil {
				peerSki = ski
			}
		}
		handler(conn, peerSki)
	})

	server := &http.Server{
		Handler:   mux,
		TLSConfig: tlsCfg,
	}
	return server.ServeTLS(ln, "", "")
}
