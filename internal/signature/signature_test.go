package signature_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/draconic/internal/signature"
)

func newCodec(t testing.TB) *signature.Codec {
	t.Helper()
	c, err := signature.NewCodec([]byte("test-secret"))
	require.NoError(t, err)
	return c
}

func TestNewCodec_EmptySecret(t *testing.T) {
	_, err := signature.NewCodec(nil)
	assert.ErrorIs(t, err, signature.ErrEmptySecret)
}

func TestSign_Layout(t *testing.T) {
	tok, err := newCodec(t).Sign(signature.Claims{
		MessageID: 1, ChannelID: 2, AuthorID: 3,
		Scope:   signature.ScopeServerAlias,
		Payload: 5,
	})
	require.NoError(t, err)
	recPart, macPart, ok := strings.Cut(tok, ".")
	require.True(t, ok)

	rec, err := base64.RawURLEncoding.DecodeString(recPart)
	require.NoError(t, err)
	require.Len(t, rec, signature.RecordSize)
	assert.Equal(t, byte(1), rec[7])
	assert.Equal(t, byte(2), rec[15])
	assert.Equal(t, byte(3), rec[23])
	assert.Equal(t, byte(5<<3|2), rec[36])

	mac, err := base64.RawURLEncoding.DecodeString(macPart)
	require.NoError(t, err)
	assert.Len(t, mac, 20)
}

func TestSign_RejectsOutOfRange(t *testing.T) {
	c := newCodec(t)
	_, err := c.Sign(signature.Claims{Payload: 32})
	assert.ErrorIs(t, err, signature.ErrPayloadRange)
	_, err = c.Sign(signature.Claims{Payload: -1})
	assert.ErrorIs(t, err, signature.ErrPayloadRange)
	_, err = c.Sign(signature.Claims{Scope: signature.ExecutionScope(6)})
	assert.ErrorIs(t, err, signature.ErrInvalidScope)
}

func TestVerify_Timestamp(t *testing.T) {
	c := newCodec(t)
	tok, err := c.Sign(signature.Claims{MessageID: 175928847299117063})
	require.NoError(t, err)
	v, err := c.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 4, 30, 11, 18, 25, 796_000_000, time.UTC), v.Timestamp)
	assert.Nil(t, v.CollectionID)
	assert.Equal(t, "", v.CollectionHex())
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := newCodec(t).Sign(signature.Claims{MessageID: 42})
	require.NoError(t, err)
	other, err := signature.NewCodec([]byte("other-secret"))
	require.NoError(t, err)
	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, signature.ErrInvalidSignature)
}

func TestVerify_Malformed(t *testing.T) {
	c := newCodec(t)
	for _, tok := range []string{"", "nodot", "!!!.abc", "abc.!!!", "AAAA.AAAA"} {
		_, err := c.Verify(tok)
		var se *signature.SignatureError
		assert.True(t, errors.As(err, &se), "token %q: %v", tok, err)
	}
}

func TestProperty_RoundTrip(t *testing.T) {
	c := newCodec(t)
	rapid.Check(t, func(rt *rapid.T) {
		claims := signature.Claims{
			MessageID: rapid.Uint64Range(1<<22, 1<<62).Draw(rt, "message"),
			ChannelID: rapid.Uint64().Draw(rt, "channel"),
			AuthorID:  rapid.Uint64().Draw(rt, "author"),
			Scope:     signature.ExecutionScope(rapid.IntRange(0, 5).Draw(rt, "scope")),
			Payload:   rapid.IntRange(0, signature.MaxPayload).Draw(rt, "payload"),
		}
		if rapid.Bool().Draw(rt, "hasCollection") {
			var coll [12]byte
			copy(coll[:], rapid.SliceOfN(rapid.Byte(), 12, 12).Draw(rt, "collection"))
			coll[0] |= 1
			claims.CollectionID = &coll
		}
		tok, err := c.Sign(claims)
		if err != nil {
			rt.Fatalf("sign: %v", err)
		}
		v, err := c.Verify(tok)
		if err != nil {
			rt.Fatalf("verify: %v", err)
		}
		if v.MessageID != claims.MessageID || v.ChannelID != claims.ChannelID || v.AuthorID != claims.AuthorID ||
			v.Scope != claims.Scope || v.Payload != claims.Payload {
			rt.Fatalf("round trip mismatch: %+v vs %+v", v.Claims, claims)
		}
		if (claims.CollectionID == nil) != (v.CollectionID == nil) ||
			(claims.CollectionID != nil && *claims.CollectionID != *v.CollectionID) {
			rt.Fatalf("collection mismatch")
		}
	})
}

func TestVerify_EveryTokenBitFlipIsDetected(t *testing.T) {
	c := newCodec(t)
	tok, err := c.Sign(signature.Claims{MessageID: 175928847299117063, ChannelID: 7, AuthorID: 9, Scope: signature.ScopePersonalSnippet, Payload: 17})
	require.NoError(t, err)

	for i := range len(tok) {
		for bit := range 8 {
			b := []byte(tok)
			b[i] ^= 1 << bit
			_, err := c.Verify(string(b))
			assert.ErrorIs(t, err, signature.ErrInvalidSignature, "char %d bit %d (%q -> %q)", i, bit, tok[i], b[i])
		}
	}
}

func TestVerify_RejectsNonCanonicalEncoding(t *testing.T) {
	c := newCodec(t)
	tok, err := c.Sign(signature.Claims{MessageID: 175928847299117063, Scope: signature.ScopeCommandTest})
	require.NoError(t, err)
	recPart, macPart, _ := strings.Cut(tok, ".")

	_, err = c.Verify(recPart[:10] + "\n" + recPart[10:] + "." + macPart)
	assert.ErrorIs(t, err, signature.ErrInvalidSignature)

	// the record's last character carries four unused low bits
	last := strings.IndexByte(base64URLAlphabet, recPart[len(recPart)-1])
	require.GreaterOrEqual(t, last, 0)
	padded := recPart[:len(recPart)-1] + string(base64URLAlphabet[last|1])
	if padded != recPart {
		_, err = c.Verify(padded + "." + macPart)
		assert.ErrorIs(t, err, signature.ErrInvalidSignature)
	}
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestProperty_AnyDecodedBitFlipIsDetected(t *testing.T) {
	c := newCodec(t)
	tok, err := c.Sign(signature.Claims{MessageID: 175928847299117063, ChannelID: 7, AuthorID: 9, Scope: signature.ScopePersonalSnippet, Payload: 17})
	require.NoError(t, err)
	recPart, macPart, _ := strings.Cut(tok, ".")
	rec, _ := base64.RawURLEncoding.DecodeString(recPart)
	mac, _ := base64.RawURLEncoding.DecodeString(macPart)

	rapid.Check(t, func(rt *rapid.T) {
		inMac := rapid.Bool().Draw(rt, "inMac")
		r := append([]byte(nil), rec...)
		m := append([]byte(nil), mac...)
		target := r
		if inMac {
			target = m
		}
		bit := rapid.IntRange(0, len(target)*8-1).Draw(rt, "bit")
		target[bit/8] ^= 1 << (bit % 8)

		tampered := base64.RawURLEncoding.EncodeToString(r) + "." + base64.RawURLEncoding.EncodeToString(m)
		_, err := c.Verify(tampered)
		if !errors.Is(err, signature.ErrInvalidSignature) {
			rt.Fatalf("bit %d (mac=%v) not detected: %v", bit, inMac, err)
		}
	})
}

func TestExecutionScope_String(t *testing.T) {
	assert.Equal(t, "SERVER_SNIPPET", signature.ScopeServerSnippet.String())
	assert.Equal(t, "ExecutionScope(9)", signature.ExecutionScope(9).String())
}

func TestParseScope(t *testing.T) {
	s, err := signature.ParseScope("personal_alias")
	require.NoError(t, err)
	assert.Equal(t, signature.ScopePersonalAlias, s)

	_, err = signature.ParseScope("everywhere")
	assert.ErrorIs(t, err, signature.ErrInvalidScope)
}
