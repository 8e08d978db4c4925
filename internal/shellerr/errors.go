// Package shellerr defines the error taxonomy shared by every stage of
// the shell core: tokenizer, parser, expander, executor, and the
// completion/highlighting engine all report through the same type so
// callers can accumulate, filter, and translate offsets uniformly.
package shellerr

import "fmt"

// Kind groups error Codes into the five families described in the spec.
type Kind int

const (
	KindTokenizer Kind = iota
	KindSyntax
	KindExpansion
	KindExec
	KindSemantic
)

func (k Kind) String() string {
	switch k {
	case KindTokenizer:
		return "tokenizer"
	case KindSyntax:
		return "syntax"
	case KindExpansion:
		return "expansion"
	case KindExec:
		return "exec"
	case KindSemantic:
		return "semantic"
	default:
		return "unknown"
	}
}

// Code enumerates specific, stable error identities within a Kind.
// Values are grouped by Kind in the order Kind is declared above.
type Code int

const (
	CodeNone Code = iota

	// Tokenizer
	CodeUnterminatedQuote
	CodeUnterminatedSubshell
	CodeUnterminatedEscape
	CodeInvalidEscapeValue

	// Syntax (parser)
	CodeUnexpectedToken
	CodeUnbalancingEnd
	CodeUnbalancingElse
	CodeUnbalancingCase
	CodeDoublePipe
	CodeDoubleBackground
	CodeGenericSyntax

	// Expansion
	CodeVariableExpandError
	CodeBadBraceSyntax
	CodeWildcardNoMatch
	CodeCommandSubstError

	// Exec
	CodeForkFailed
	CodeExecFailed
	CodeOpenFailed
	CodeDupFailed
	CodeNotExecutable
	CodeUnknownCommand

	// Semantic
	CodeBreakOutsideLoop
	CodeContinueOutsideLoop
	CodeReturnOutsideFunction
	CodeExecInPipeline
	CodeBooleanInPipeline
	CodeUnknownBuiltin
	CodeRecursionLimit
	CodeAssignmentLikeCommand
	CodeBackgroundThenBoolean
)

// Error is the single error type produced by every stage of the core.
// SourceStart/SourceLength are byte offsets into the source string the
// stage that raised the error was working on; callers that wrap a
// sub-expansion (e.g. the executor translating an argument-local error
// to global source coordinates) use Translate to adjust them without
// losing the original Code/Kind/Text.
type Error struct {
	Kind        Kind
	Code        Code
	Text        string
	SourceStart int
	SourceLength int

	wrapped error
}

func New(kind Kind, code Code, text string, start, length int) *Error {
	return &Error{Kind: kind, Code: code, Text: text, SourceStart: start, SourceLength: length}
}

func Wrap(kind Kind, code Code, text string, start, length int, cause error) *Error {
	return &Error{Kind: kind, Code: code, Text: text, SourceStart: start, SourceLength: length, wrapped: cause}
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Text, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Text)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Translate returns a copy of e with SourceStart shifted by offset, used
// when an error produced against a node-local substring is surfaced to
// the caller in terms of the enclosing source string.
func (e *Error) Translate(offset int) *Error {
	cp := *e
	cp.SourceStart += offset
	return &cp
}

// List is the accumulation type used throughout the tokenizer, parser,
// and expander: these stages never abort at the first problem, they
// collect errors into a List and let the caller decide whether to
// continue (e.g. ContinueAfterError) or stop.
type List []*Error

func (l List) Error() string {
	if len(l) == 0 {
		return "<no errors>"
	}
	if len(l) == 1 {
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
}

func (l List) HasAny() bool { return len(l) > 0 }

// Translate shifts every error in the list by offset, preserving order.
func (l List) Translate(offset int) List {
	out := make(List, len(l))
	for i, e := range l {
		out[i] = e.Translate(offset)
	}
	return out
}
