package ship

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shipspine/node/certs"
	"github.com/shipspine/node/data"
	"github.com/shipspine/node/shiplog"
	"github.com/shipspine/node/transport"
)

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

type recordingInfo struct {
	states chan State
	closed chan string
}

func newRecordingInfo() *recordingInfo {
	return &recordingInfo{states: make(chan State, 64), closed: make(chan string, 1)}
}

func (r *recordingInfo) OnStateChange(s State) {
	select {
	case r.states <- s:
	default:
	}
}

func (r *recordingInfo) OnClosed(reason string) {
	select {
	case r.closed <- reason:
	default:
	}
}

func waitForState(t *testing.T, states <-chan State, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case s := <-states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

// TestHandshakeReachesDataExchangeAndExchangesSpineData drives a full
// client/server SHIP connection from TLS dial through every named SME
// state to DataExchange, then exercises the SPINE passthrough in both
// directions, grounding the happy path in §8 scenario 4 (hello ready/ready).
func TestHandshakeReachesDataExchangeAndExchangesSpineData(t *testing.T) {
	serverCreds := genCreds(t)
	clientCreds := genCreds(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serverInfo := newRecordingInfo()
	clientInfo := newRecordingInfo()
	serverGotSpine := make(chan string, 1)

	go transport.ListenServer(ln, serverCreds, func(ski string) error {
		if ski != clientCreds.Ski {
			return errSkiMismatch
		}
		return nil
	}, func(wsConn *websocket.Conn, peerSki string) {
		sconn := NewServer(wsConn, serverCreds.Ski, peerSki, shiplog.NewDiscard(), serverInfo)
		sconn.SetSpineHandler(func(payload json.RawMessage) {
			serverGotSpine <- string(payload)
		})
		sconn.Run()
	})

	wsConn, err := transport.DialClient(ln.Addr().String(), clientCreds, func(ski string) error {
		if ski != serverCreds.Ski {
			return errSkiMismatch
		}
		return nil
	})
	if err != nil {
		t.Fatalf("DialClient: %v", err)
	}
	cconn := NewClient(wsConn, clientCreds.Ski, serverCreds.Ski, shiplog.NewDiscard(), clientInfo)
	done := make(chan struct{})
	go func() {
		cconn.Run()
		close(done)
	}()

	waitForState(t, clientInfo.states, StateDataExchange, 5*time.Second)
	waitForState(t, serverInfo.states, StateDataExchange, 5*time.Second)

	payload := json.RawMessage(`{"datagram":[{"header":[]},{"payload":[{"cmd":[]}]}]}`)
	if err := cconn.Send(payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-serverGotSpine:
		if got != string(payload) {
			t.Fatalf("unexpected spine payload: %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for server to receive spine payload")
	}

	cconn.Close()
	<-done
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

const errSkiMismatch = staticErr("unexpected ski")

func TestHasCommonVersionAndFormat(t *testing.T) {
	ok := &MessageProtocolHandshake{
		Version: &ProtocolVersion{Major: u32p(1), Minor: u32p(0)},
		Formats: []*string{strp("JSON-UTF8")},
	}
	if !hasCommonVersion(ok) || !hasJSONFormat(ok) {
		t.Fatalf("expected compatible handshake to be accepted")
	}

	badVersion := &MessageProtocolHandshake{
		Version: &ProtocolVersion{Major: u32p(2), Minor: u32p(0)},
		Formats: []*string{strp("JSON-UTF8")},
	}
	if hasCommonVersion(badVersion) {
		t.Fatalf("expected major-version mismatch to be rejected")
	}

	badFormat := &MessageProtocolHandshake{
		Version: &ProtocolVersion{Major: u32p(1), Minor: u32p(0)},
		Formats: []*string{strp("XML")},
	}
	if hasJSONFormat(badFormat) {
		t.Fatalf("expected unsupported format to be rejected")
	}
}

func TestHelloStateReadyListenReadyPhaseProgressesToOk(t *testing.T) {
	c := &Conn{timers: newTimerSet(func(envelope) {})}
	raw, err := EncodeControl(&data.Choice{Index: ControlConnectionHello, Value: &ConnectionHello{Phase: strp("ready")}})
	if err != nil {
		t.Fatalf("EncodeControl: %v", err)
	}
	next := c.helloStateReadyListen(envelope{kind: envDataReceived, frame: Frame{Type: FrameControl, Payload: raw}})
	if next != StateSmeHelloStateOk {
		t.Fatalf("expected SmeHelloStateOk, got %v", next)
	}
}

func TestHelloStateReadyListenAbortedPhaseAborts(t *testing.T) {
	c := &Conn{timers: newTimerSet(func(envelope) {})}
	raw, err := EncodeControl(&data.Choice{Index: ControlConnectionHello, Value: &ConnectionHello{Phase: strp("aborted")}})
	if err != nil {
		t.Fatalf("EncodeControl: %v", err)
	}
	next := c.helloStateReadyListen(envelope{kind: envDataReceived, frame: Frame{Type: FrameControl, Payload: raw}})
	if next != StateSmeStateError {
		t.Fatalf("expected SmeStateError, got %v", next)
	}
	if c.pendingCloseReason == "" {
		t.Fatalf("expected a close reason to be recorded")
	}
}
