package talos

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"regexp"
	"testing"
	"time"

	"tap_talos/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixedTime     = time.Date(2024, 1, 2, 3, 4, 5, 987654321, time.UTC)
	timestampRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.000000Z$`)
	base64URLRe   = regexp.MustCompile(`^[A-Za-z0-9_-]+={0,2}$`)
	testCreds     = domain.NewCredentials("K", "S", "h.example.com")
	fixedClock    = func() time.Time { return fixedTime }
	expectedStamp = "2024-01-02T03:04:05.000000Z"
)

func newFixedSigner(creds domain.Credentials) *Signer {
	return NewSigner(creds).WithClock(fixedClock)
}

func TestComputeHmacSha256(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	// Hex: f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8
	expected := "97yD9DBThCSxMpjmqm-xQ-9NWaFJRhdZl0edvC0aPNg="
	result := computeHmacSha256("The quick brown fox jumps over the lazy dog", "key")

	assert.Equal(t, expected, result)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, expectedStamp, formatTimestamp(fixedTime))

	// Non-UTC input is converted before formatting.
	tokyo := time.FixedZone("JST", 9*60*60)
	assert.Equal(t, expectedStamp, formatTimestamp(fixedTime.In(tokyo)))
}

func TestSigner_Sign(t *testing.T) {
	ts, sig, err := newFixedSigner(testCreds).Sign("GET", BalancesPath)
	require.NoError(t, err)
	assert.Equal(t, expectedStamp, ts)

	mac := hmac.New(sha256.New, []byte("S"))
	mac.Write([]byte("GET\n" + expectedStamp + "\nh.example.com\n/v1/balances"))
	assert.Equal(t, base64.URLEncoding.EncodeToString(mac.Sum(nil)), sig)
}

func TestSigner_Deterministic(t *testing.T) {
	signer := newFixedSigner(testCreds)

	_, first, err := signer.Sign("GET", BalancesPath)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, again, err := signer.Sign("GET", BalancesPath)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSigner_EveryFieldAffectsSignature(t *testing.T) {
	_, base, err := newFixedSigner(testCreds).Sign("GET", BalancesPath)
	require.NoError(t, err)

	tests := []struct {
		name   string
		creds  domain.Credentials
		method string
		path   string
	}{
		{"method", testCreds, "POST", BalancesPath},
		{"path", testCreds, "GET", "/v1/orders"},
		{"host", domain.NewCredentials("K", "S", "other.example.com"), "GET", BalancesPath},
		{"secret", domain.NewCredentials("K", "S2", "h.example.com"), "GET", BalancesPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sig, err := newFixedSigner(tt.creds).Sign(tt.method, tt.path)
			require.NoError(t, err)
			assert.NotEqual(t, base, sig)
		})
	}

	t.Run("timestamp", func(t *testing.T) {
		later := NewSigner(testCreds).WithClock(func() time.Time { return fixedTime.Add(time.Second) })
		_, sig, err := later.Sign("GET", BalancesPath)
		require.NoError(t, err)
		assert.NotEqual(t, base, sig)
	})

	t.Run("api key is not signed", func(t *testing.T) {
		_, sig, err := newFixedSigner(domain.NewCredentials("other", "S", "h.example.com")).Sign("GET", BalancesPath)
		require.NoError(t, err)
		assert.Equal(t, base, sig)
	})
}

func TestSigner_QueryIsIgnored(t *testing.T) {
	signer := newFixedSigner(testCreds)

	_, plain, err := signer.Sign("GET", BalancesPath)
	require.NoError(t, err)
	_, withQuery, err := signer.Sign("GET", BalancesPath+"?Currencies=BTC#frag")
	require.NoError(t, err)

	assert.Equal(t, plain, withQuery)
}

func TestSigner_SignatureShape(t *testing.T) {
	_, sig, err := NewSigner(testCreds).Sign("GET", BalancesPath)
	require.NoError(t, err)

	assert.Len(t, sig, 44)
	assert.Regexp(t, base64URLRe, sig)

	raw, err := base64.URLEncoding.DecodeString(sig)
	require.NoError(t, err)
	assert.Len(t, raw, sha256.Size)
}

func TestSigner_NonASCII(t *testing.T) {
	t.Run("secret", func(t *testing.T) {
		_, _, err := newFixedSigner(domain.NewCredentials("K", "sécret", "h.example.com")).Sign("GET", BalancesPath)

		var encErr *domain.EncodingError
		require.True(t, errors.As(err, &encErr))
		assert.Equal(t, "api_secret", encErr.Field)
		assert.ErrorIs(t, err, domain.ErrNonASCII)
	})

	t.Run("path", func(t *testing.T) {
		_, _, err := newFixedSigner(testCreds).Sign("GET", "/v1/bälances")

		var encErr *domain.EncodingError
		require.True(t, errors.As(err, &encErr))
		assert.Equal(t, "payload", encErr.Field)
	})
}

func TestSigner_Headers(t *testing.T) {
	headers, err := NewSigner(testCreds).Headers("GET", BalancesPath)
	require.NoError(t, err)

	assert.Equal(t, "K", headers.Get(HeaderKey))
	assert.Regexp(t, timestampRe, headers.Get(HeaderTimestamp))
	assert.Len(t, headers.Get(HeaderSign), 44)
	assert.Regexp(t, base64URLRe, headers.Get(HeaderSign))
}
