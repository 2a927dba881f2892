package scripting

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cory-johannsen/draconic/internal/dice"
	"github.com/cory-johannsen/draconic/internal/scripting/draconic"
	"github.com/cory-johannsen/draconic/internal/signature"
)

var (
	// ErrNoCharacter is returned by a CharacterProvider when the invoking
	// user has no active character.
	ErrNoCharacter = errors.New("scripting: no active character")
	// ErrAlreadyFlushed is returned when a MutationSet is flushed twice.
	ErrAlreadyFlushed = errors.New("scripting: mutations already flushed")
)

// Capability failure reasons.
const (
	FunctionRequiresCharacter = "FunctionRequiresCharacter"
	PermissionDenied          = "PermissionDenied"
	NotConfigured             = "NotConfigured"
)

// CapabilityError reports a builtin that cannot run in the current invocation.
// Scripts cannot catch it.
type CapabilityError struct {
	Function string
	Reason   string
	Err      error
}

// Error implements error.
func (e *CapabilityError) Error() string {
	switch e.Reason {
	case FunctionRequiresCharacter:
		return fmt.Sprintf("%s() requires an active character", e.Function)
	case PermissionDenied:
		return fmt.Sprintf("%s() is not permitted here", e.Function)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s() is unavailable: %v", e.Function, e.Err)
	}
	return fmt.Sprintf("%s() is unavailable", e.Function)
}

// Unwrap returns the underlying cause, if any.
func (e *CapabilityError) Unwrap() error { return e.Err }

// EvaluationError wraps any failure raised while evaluating a script, with
// the source fragment that raised it.
type EvaluationError struct {
	Err    error
	Source string
}

// Error returns a message safe for the channel: the failure kind and the
// first line of the offending source, never a traceback.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("error evaluating %s: %s", quoteFragment(e.Source, 100), summary(e.Err))
}

// Unwrap returns the original failure.
func (e *EvaluationError) Unwrap() error { return e.Err }

// AuthorDetail returns the full failure and source, capped at max bytes. It
// is meant only for the script's author.
func (e *EvaluationError) AuthorDetail(max int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v\n", e.Err)
	for i, line := range strings.Split(e.Source, "\n") {
		fmt.Fprintf(&b, "%4d | %s\n", i+1, line)
	}
	s := b.String()
	if max > 3 && len(s) > max {
		s = s[:max-3] + "..."
	}
	return s
}

func quoteFragment(src string, n int) string {
	src = strings.TrimSpace(src)
	if line, _, ok := strings.Cut(src, "\n"); ok {
		src = line + " ..."
	}
	if len(src) > n {
		src = src[:n] + "..."
	}
	return "`" + src + "`"
}

// summary renders err without any internal detail.
func summary(err error) string {
	var (
		syn   *draconic.SyntaxError
		dsyn  *dice.SyntaxError
		limit *draconic.LimitError
		abort *draconic.UserAbort
		rt    *draconic.RuntimeError
		capE  *CapabilityError
		sig   *signature.SignatureError
	)
	switch {
	case errors.As(err, &abort):
		return abort.Message
	case errors.As(err, &syn):
		return syn.Error()
	case errors.As(err, &dsyn):
		return dsyn.Error()
	case errors.As(err, &limit):
		return "the script is too large or too expensive (" + string(limit.Kind) + ")"
	case errors.Is(err, dice.ErrTooManyRolls):
		return "too many dice rolled"
	case errors.As(err, &capE):
		return capE.Error()
	case errors.As(err, &sig):
		return "invalid signature"
	case errors.As(err, &rt):
		return rt.Kind + ": " + rt.Msg
	}
	return "an internal error occurred"
}

// ErrorKind classifies err for logs and metrics.
func ErrorKind(err error) string {
	var (
		syn   *draconic.SyntaxError
		dsyn  *dice.SyntaxError
		limit *draconic.LimitError
		abort *draconic.UserAbort
		rt    *draconic.RuntimeError
		capE  *CapabilityError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &abort):
		return "user_abort"
	case errors.As(err, &syn), errors.As(err, &dsyn):
		return "syntax"
	case errors.As(err, &limit), errors.Is(err, dice.ErrTooManyRolls):
		return "limit"
	case errors.As(err, &capE):
		return "capability"
	case errors.Is(err, signature.ErrInvalidSignature):
		return "signature"
	case errors.As(err, &rt):
		return "runtime"
	}
	return "internal"
}

// UserMessage phrases err for the invoking user. The second result reports
// whether the message should be delivered privately instead of in-channel.
func UserMessage(err error) (string, bool) {
	var abort *draconic.UserAbort
	if errors.As(err, &abort) {
		return abort.Message, abort.PrivateMessage
	}
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return ee.Error(), false
	}
	return summary(err), false
}
