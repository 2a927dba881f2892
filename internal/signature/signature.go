// Package signature packs invocation identifiers into a fixed-width record,
// signs it with HMAC-SHA1 and encodes it as an opaque token that scripts can
// hand to other systems and later verify.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// RecordSize is the length of an unsigned record: three uint64 ids, a
// 12-byte collection id and one tail byte.
const RecordSize = 8 + 8 + 8 + 12 + 1

// MaxPayload is the largest user payload that fits the tail byte.
const MaxPayload = 31

var (
	// ErrInvalidSignature is matched by every *SignatureError.
	ErrInvalidSignature = errors.New("signature: invalid signature")
	// ErrPayloadRange is returned by Sign for payloads outside [0, MaxPayload].
	ErrPayloadRange = errors.New("signature: payload out of range")
	// ErrInvalidScope is returned by Sign for scopes outside the enum.
	ErrInvalidScope = errors.New("signature: invalid execution scope")
	// ErrEmptySecret is returned by NewCodec for an empty key.
	ErrEmptySecret = errors.New("signature: secret must not be empty")
)

// ExecutionScope identifies what kind of script produced a signature.
type ExecutionScope uint8

const (
	ScopeUnknown ExecutionScope = iota
	ScopePersonalAlias
	ScopeServerAlias
	ScopePersonalSnippet
	ScopeServerSnippet
	ScopeCommandTest
)

var scopeNames = [...]string{
	ScopeUnknown:         "UNKNOWN",
	ScopePersonalAlias:   "PERSONAL_ALIAS",
	ScopeServerAlias:     "SERVER_ALIAS",
	ScopePersonalSnippet: "PERSONAL_SNIPPET",
	ScopeServerSnippet:   "SERVER_SNIPPET",
	ScopeCommandTest:     "COMMAND_TEST",
}

// Valid reports whether s is a defined scope.
func (s ExecutionScope) Valid() bool { return int(s) < len(scopeNames) }

// String returns the scope's canonical upper-case name.
func (s ExecutionScope) String() string {
	if !s.Valid() {
		return "ExecutionScope(" + strconv.Itoa(int(s)) + ")"
	}
	return scopeNames[s]
}

// ParseScope returns the scope with the given canonical name, case-insensitively.
func ParseScope(name string) (ExecutionScope, error) {
	for i, n := range scopeNames {
		if strings.EqualFold(n, name) {
			return ExecutionScope(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidScope, name)
}

// SignatureError reports a token that failed to decode or verify.
type SignatureError struct {
	Reason string
	Err    error
}

// Error implements error.
func (e *SignatureError) Error() string {
	return "signature: " + e.Reason
}

// Unwrap returns the underlying decode failure, if any.
func (e *SignatureError) Unwrap() error { return e.Err }

// Is makes every SignatureError match ErrInvalidSignature.
func (e *SignatureError) Is(target error) bool { return target == ErrInvalidSignature }

func invalid(reason string, err error) *SignatureError {
	return &SignatureError{Reason: reason, Err: err}
}

// Claims is the content of a signed record.
type Claims struct {
	MessageID uint64
	ChannelID uint64
	AuthorID  uint64
	Scope     ExecutionScope
	// Payload is arbitrary user data in [0, MaxPayload].
	Payload int
	// CollectionID is an optional 12-byte secondary id; nil packs as zeros.
	CollectionID *[12]byte
}

// Verified is a record whose signature checked out.
type Verified struct {
	Claims
	// Timestamp is the creation time embedded in MessageID.
	Timestamp time.Time
}

// CollectionHex renders CollectionID as lowercase hex, or "" when absent.
func (v Verified) CollectionHex() string {
	if v.CollectionID == nil {
		return ""
	}
	return hex.EncodeToString(v.CollectionID[:])
}

// Codec signs and verifies capability tokens with a server secret.
type Codec struct {
	secret []byte
}

// NewCodec returns a Codec keyed by secret.
//
// Precondition: secret must be non-empty.
// Postcondition: returns a non-nil Codec or ErrEmptySecret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &Codec{secret: append([]byte(nil), secret...)}, nil
}

// encoding rejects nonzero trailing bits so every token has exactly one
// accepted spelling.
var encoding = base64.RawURLEncoding.Strict()

// Sign packs and signs c.
//
// Postcondition: returns "<base64 record>.<base64 mac>", or ErrPayloadRange /
// ErrInvalidScope without producing a token.
func (cd *Codec) Sign(c Claims) (string, error) {
	rec, err := encodeRecord(c)
	if err != nil {
		return "", err
	}
	return encoding.EncodeToString(rec) + "." + encoding.EncodeToString(cd.mac(rec)), nil
}

// Verify checks token's signature and unpacks its record.
//
// Postcondition: every failure is a *SignatureError matching ErrInvalidSignature.
func (cd *Codec) Verify(token string) (Verified, error) {
	recPart, macPart, ok := strings.Cut(token, ".")
	if !ok {
		return Verified{}, invalid("malformed token", nil)
	}
	rec, err := decodeCanonical(recPart)
	if err != nil {
		return Verified{}, invalid("malformed record", err)
	}
	mac, err := decodeCanonical(macPart)
	if err != nil {
		return Verified{}, invalid("malformed mac", err)
	}
	if len(rec) != RecordSize {
		return Verified{}, invalid(fmt.Sprintf("record is %d bytes, want %d", len(rec), RecordSize), nil)
	}
	if !hmac.Equal(mac, cd.mac(rec)) {
		return Verified{}, invalid("mac mismatch", nil)
	}
	c, err := decodeRecord(rec)
	if err != nil {
		return Verified{}, invalid("bad record", err)
	}
	ts, err := discordgo.SnowflakeTimestamp(strconv.FormatUint(c.MessageID, 10))
	if err != nil {
		return Verified{}, invalid("bad message id", err)
	}
	return Verified{Claims: c, Timestamp: ts.UTC()}, nil
}

// decodeCanonical decodes s and fails unless s is the exact encoding of the
// result. The decoder alone skips CR and LF.
func decodeCanonical(s string) ([]byte, error) {
	b, err := encoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if encoding.EncodeToString(b) != s {
		return nil, errors.New("non-canonical encoding")
	}
	return b, nil
}

func (cd *Codec) mac(rec []byte) []byte {
	h := hmac.New(sha1.New, cd.secret)
	h.Write(rec)
	return h.Sum(nil)
}

func encodeRecord(c Claims) ([]byte, error) {
	if c.Payload < 0 || c.Payload > MaxPayload {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrPayloadRange, c.Payload, MaxPayload)
	}
	if !c.Scope.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScope, c.Scope)
	}
	rec := make([]byte, 0, RecordSize)
	rec = binary.BigEndian.AppendUint64(rec, c.MessageID)
	rec = binary.BigEndian.AppendUint64(rec, c.ChannelID)
	rec = binary.BigEndian.AppendUint64(rec, c.AuthorID)
	var coll [12]byte
	if c.CollectionID != nil {
		coll = *c.CollectionID
	}
	rec = append(rec, coll[:]...)
	rec = append(rec, byte(c.Payload)<<3|byte(c.Scope))
	return rec, nil
}

func decodeRecord(rec []byte) (Claims, error) {
	c := Claims{
		MessageID: binary.BigEndian.Uint64(rec[0:8]),
		ChannelID: binary.BigEndian.Uint64(rec[8:16]),
		AuthorID:  binary.BigEndian.Uint64(rec[16:24]),
	}
	var coll [12]byte
	copy(coll[:], rec[24:36])
	if coll != ([12]byte{}) {
		c.CollectionID = &coll
	}
	tail := rec[36]
	c.Scope = ExecutionScope(tail & 0x7)
	c.Payload = int(tail >> 3)
	if !c.Scope.Valid() {
		return Claims{}, fmt.Errorf("%w: %d", ErrInvalidScope, c.Scope)
	}
	return c, nil
}
