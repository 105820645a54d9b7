package mlts

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *Identity) {
	t.Helper()
	identity, err := NewIdentity(2048)
	require.NoError(t, err)
	return NewServer(identity, time.Hour, time.Minute, nil, zap.NewNop()), identity
}

func wrapKeyForTest(t *testing.T, identity *Identity, key fernetKey) string {
	t.Helper()
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, identity.pub, key.bytes(), nil)
	require.NoError(t, err)
	return hex.EncodeToString(wrapped)
}

func TestServer_ExchangeDecryptEncrypt(t *testing.T) {
	srv, identity := newTestServer(t)

	key, err := newFernetKey()
	require.NoError(t, err)
	wrappedHex := wrapKeyForTest(t, identity, key)

	require.NoError(t, srv.Exchange("peer-a", "uuid-1", wrappedHex, 1700000000, "nonce-1", "unverified-signature"))

	token, err := key.encrypt([]byte(`{"prompt":"hi"}`), time.Now())
	require.NoError(t, err)

	plaintext, err := srv.Decrypt("peer-a", "uuid-1", token)
	require.NoError(t, err)
	assert.Equal(t, `{"prompt":"hi"}`, string(plaintext))

	ciphertext, err := srv.Encrypt("peer-a", "uuid-1", []byte("response"))
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext)
}

func TestServer_Decrypt_UnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	_, err := srv.Decrypt("peer-a", "uuid-missing", "whatever")
	assert.Error(t, err)
}

func TestServer_Exchange_RejectsReplayedNonce(t *testing.T) {
	srv, identity := newTestServer(t)
	key, err := newFernetKey()
	require.NoError(t, err)
	require.NoError(t, srv.Exchange("peer-a", "uuid-1", wrapKeyForTest(t, identity, key), 1700000000, "nonce-1", "sig"))

	key2, err := newFernetKey()
	require.NoError(t, err)
	err = srv.Exchange("peer-a", "uuid-2", wrapKeyForTest(t, identity, key2), 1700000001, "nonce-1", "sig")
	assert.Error(t, err)
}

func TestServer_StartReaper_SweepsExpiredSessions(t *testing.T) {
	identity, err := NewIdentity(2048)
	require.NoError(t, err)
	srv := NewServer(identity, 20*time.Millisecond, time.Minute, nil, zap.NewNop())

	key, err := newFernetKey()
	require.NoError(t, err)
	require.NoError(t, srv.Exchange("peer-a", "uuid-1", wrapKeyForTest(t, identity, key), 1700000000, "nonce-reap", "sig"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	srv.StartReaper(ctx)

	time.Sleep(150 * time.Millisecond)
	_, present, _ := srv.sessions.get("peer-a", "uuid-1", time.Now())
	assert.False(t, present)

	srv.Stop()
}
