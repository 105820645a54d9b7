package mlts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFernetKey_EncryptDecrypt_RoundTrip(t *testing.T) {
	key, err := newFernetKey()
	require.NoError(t, err)

	now := time.Now()
	token, err := key.encrypt([]byte("hello miner"), now)
	require.NoError(t, err)

	plaintext, err := key.decrypt(token, 0, now)
	require.NoError(t, err)
	assert.Equal(t, "hello miner", string(plaintext))
}

func TestFernetKey_Decrypt_RejectsExpiredToken(t *testing.T) {
	key, err := newFernetKey()
	require.NoError(t, err)

	issued := time.Now()
	token, err := key.encrypt([]byte("payload"), issued)
	require.NoError(t, err)

	_, err = key.decrypt(token, time.Second, issued.Add(time.Hour))
	assert.Error(t, err)
}

func TestFernetKey_Decrypt_RejectsTamperedToken(t *testing.T) {
	key, err := newFernetKey()
	require.NoError(t, err)

	token, err := key.encrypt([]byte("payload"), time.Now())
	require.NoError(t, err)

	tampered := []byte(token)
	tampered[len(tampered)-1] ^= 0x01
	_, err = key.decrypt(string(tampered), 0, time.Now())
	assert.Error(t, err)
}

func TestFernetKey_Decrypt_RejectsWrongKey(t *testing.T) {
	key, err := newFernetKey()
	require.NoError(t, err)
	other, err := newFernetKey()
	require.NoError(t, err)

	token, err := key.encrypt([]byte("payload"), time.Now())
	require.NoError(t, err)

	_, err = other.decrypt(token, 0, time.Now())
	assert.Error(t, err)
}

// TestFernetKey_RoundTrip_Property checks that any byte slice survives
// an encrypt/decrypt round trip unchanged, for any freshly generated
// key, matching the reference Fernet wire format's guarantee.
func TestFernetKey_RoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		plaintext := rapid.SliceOfN(rapid.Byte(), 0, 512).Draw(rt, "plaintext")
		key, err := newFernetKey()
		if err != nil {
			rt.Fatal(err)
		}
		now := time.Now()
		token, err := key.encrypt(plaintext, now)
		if err != nil {
			rt.Fatal(err)
		}
		got, err := key.decrypt(token, 0, now)
		if err != nil {
			rt.Fatal(err)
		}
		if string(got) != string(plaintext) {
			rt.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
		}
	})
}
