package mlts

import (
	"bytes"
	"context"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loosh-ai/miner-core/apierr"
)

// Verifier checks a handshake signature against a peer's known
// identity. A chain-identity integration can supply a real
// implementation; the default is a documented no-op (see NewServer).
type Verifier interface {
	Verify(peer PeerID, payload []byte, signature string) (bool, error)
}

type noopVerifier struct {
	logger *zap.Logger
	once   sync.Once
}

func (v *noopVerifier) Verify(peer PeerID, payload []byte, signature string) (bool, error) {
	v.once.Do(func() {
		v.logger.Warn("mlts: handshake signatures are not verified; accepting on identity alone")
	})
	return true, nil
}

// Server is the node's session layer: it owns the RSA identity, the
// exchanged-key cache, and the replay window, and serves the three
// operations peers drive through the handshake/challenge endpoints.
type Server struct {
	identity *Identity
	sessions *sessionCache
	nonces   *nonceWindow
	verifier Verifier

	keyTTL      time.Duration
	nonceWindow time.Duration

	logger *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewServer builds a session server around the given identity. If
// verifier is nil, handshake signatures are accepted unverified and a
// single warning is logged — see SPEC_FULL.md's Open Questions.
func NewServer(identity *Identity, keyTTL, nonceWindow time.Duration, verifier Verifier, logger *zap.Logger) *Server {
	if verifier == nil {
		verifier = &noopVerifier{logger: logger}
	}
	return &Server{
		identity:    identity,
		sessions:    newSessionCache(),
		nonces:      newNonceWindow(),
		verifier:    verifier,
		keyTTL:      keyTTL,
		nonceWindow: nonceWindow,
		logger:      logger,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// PublicKeyPEM exposes the node's public key for the public-key
// endpoint.
func (s *Server) PublicKeyPEM() (string, error) {
	return s.identity.PublicKeyPEM()
}

// Exchange handles a key-exchange request: the peer has RSA-OAEP
// wrapped a 32-byte Fernet key, hex-encoded, under the node's public
// key. Step order follows the reference handshake exactly: reject
// replayed nonces first, then verify the signature, then unwrap the
// key — no session state is touched until all three succeed.
func (s *Server) Exchange(peer PeerID, uuid string, encKeyHex string, timestamp float64, nonce string, signature string) error {
	now := time.Now()

	if !s.nonces.accept(nonce, s.nonceWindow, now) {
		return apierr.New(apierr.HandshakeRejected, "nonce replay detected")
	}

	wrapped, err := hex.DecodeString(encKeyHex)
	if err != nil {
		return apierr.Wrap(apierr.BadEnvelope, "malformed wrapped key", err)
	}

	ok, err := s.verifier.Verify(peer, handshakePayload(wrapped, uuid, timestamp, nonce), signature)
	if err != nil || !ok {
		return apierr.New(apierr.HandshakeRejected, "handshake signature rejected")
	}

	raw, err := s.identity.unwrapKey(wrapped)
	if err != nil {
		return apierr.Wrap(apierr.HandshakeRejected, "failed to unwrap symmetric key", err)
	}

	key, err := fernetKeyFromBytes(raw)
	if err != nil {
		return apierr.Wrap(apierr.HandshakeRejected, "malformed symmetric key", err)
	}

	s.sessions.put(peer, uuid, key, now.Add(s.keyTTL))
	s.logger.Debug("mlts: session established", zap.String("peer", elide(string(peer))), zap.String("uuid", uuid))
	return nil
}

// handshakePayload builds the byte string a handshake signature is
// verified over: the wrapped key followed by uuid, timestamp and
// nonce, each as their wire-literal bytes.
func handshakePayload(wrapped []byte, uuid string, timestamp float64, nonce string) []byte {
	return bytes.Join([][]byte{
		wrapped,
		[]byte(uuid),
		[]byte(strconv.FormatFloat(timestamp, 'f', -1, 64)),
		[]byte(nonce),
	}, nil)
}

// Decrypt decrypts a challenge ciphertext for (peer, uuid), returning
// the plaintext payload. Replay protection lives entirely in
// Exchange; a challenge ciphertext carries no nonce of its own.
func (s *Server) Decrypt(peer PeerID, uuid string, ciphertext string) ([]byte, error) {
	now := time.Now()

	key, present, expired := s.sessions.get(peer, uuid, now)
	if !present {
		return nil, apierr.New(apierr.SessionUnknown, "no session for peer/uuid")
	}
	if expired {
		return nil, apierr.New(apierr.SessionExpired, "session key has expired")
	}

	plaintext, err := key.decrypt(ciphertext, s.keyTTL, now)
	if err != nil {
		return nil, apierr.Wrap(apierr.DecryptFailed, "failed to decrypt payload", err)
	}
	return plaintext, nil
}

// Encrypt wraps a response payload for (peer, uuid) using the stored
// session key.
func (s *Server) Encrypt(peer PeerID, uuid string, plaintext []byte) (string, error) {
	now := time.Now()
	key, present, expired := s.sessions.get(peer, uuid, now)
	if !present {
		return "", apierr.New(apierr.SessionUnknown, "no session for peer/uuid")
	}
	if expired {
		return "", apierr.New(apierr.SessionExpired, "session key has expired")
	}
	token, err := key.encrypt(plaintext, now)
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, "failed to encrypt response", err)
	}
	return token, nil
}

// StartReaper launches the periodic cleanup goroutine, sweeping
// expired sessions and stale nonces every keyTTL/2, matching the
// reference implementation's cadence.
func (s *Server) StartReaper(ctx context.Context) {
	interval := s.keyTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				now := time.Now()
				removedSessions := s.sessions.sweep(now)
				removedNonces := s.nonces.sweep(s.nonceWindow, now)
				if removedSessions > 0 || removedNonces > 0 {
					s.logger.Debug("mlts: reaper swept expired state",
						zap.Int("sessions", removedSessions),
						zap.Int("nonces", removedNonces))
				}
			}
		}
	}()
}

// Stop signals the reaper to exit and waits for it to do so.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// elide truncates a peer identifier for logs, matching the
// reference implementation's "hotkey[:8]..." convention.
func elide(s string) string {
	const n = 8
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
