// Package lainerr defines the error taxonomy shared by every lain command.
//
// Errors fall into five categories. Each category decides how the failure is
// reported and which exit code the process adopts; nothing is ever retried.
package lainerr

import (
	"errors"
	"fmt"
)

// Category classifies a failure for reporting and exit-code purposes.
type Category int

const (
	// UserInput covers bad cluster names, unknown deployments and malformed pairs.
	UserInput Category = iota + 1
	// Precondition covers a missing chart, missing secret, broken release or image.
	Precondition
	// ExternalTool covers a non-zero exit from helm, kubectl or legacy_lain.
	ExternalTool
	// TransientNetwork covers an unreachable registry or API.
	TransientNetwork
	// CorruptLocalState covers a missing or non-symlink kubeconfig pointer.
	CorruptLocalState
)

func (c Category) String() string {
	switch c {
	case UserInput:
		return "user input error"
	case Precondition:
		return "precondition failure"
	case ExternalTool:
		return "external tool failure"
	case TransientNetwork:
		return "network failure"
	case CorruptLocalState:
		return "corrupt local state"
	default:
		return "error"
	}
}

var (
	ErrUnknownCluster             = errors.New("unknown cluster")
	ErrNoActiveCluster            = errors.New("no active cluster")
	ErrCorruptActiveCluster       = errors.New("active cluster pointer is not a symlink")
	ErrMissingKubeconfig          = errors.New("kubeconfig not found")
	ErrUnrecognizedManifestClause = errors.New("unrecognized manifest clause")
	ErrDuplicateProcess           = errors.New("duplicate process name")
	ErrDuplicateSecretFile        = errors.New("secret files share a file name")
	ErrInvalidMemory              = errors.New("invalid memory value")
	ErrInvalidKVPair              = errors.New("invalid key=value pair")
	ErrUnknownDeployment          = errors.New("unknown deployment")
	ErrImageNotFound              = errors.New("image not found")
	ErrNoImages                   = errors.New("no pushed image")
	ErrChartMissing               = errors.New("helm chart not initialized")
	ErrChartExists                = errors.New("helm chart already exists")
	ErrSecretMissing              = errors.New("secret not found")
	ErrBrokenRelease              = errors.New("release in a broken state")
	ErrNotLainApp                 = errors.New("not in a lain app repo")
	ErrShapeMismatch              = errors.New("override changes the shape of a base value")
)

// Error is a categorised failure with optional remediation text.
type Error struct {
	Category Category
	Message  string
	// Remedy holds the commands a user should run next, printed verbatim.
	Remedy string
	// Code is the exit code for ExternalTool failures; 0 means "use 1".
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Category.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a categorised error wrapping cause.
func New(category Category, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		Err:      cause,
	}
}

// WithRemedy attaches remediation text and returns the same error.
func (e *Error) WithRemedy(remedy string) *Error {
	e.Remedy = remedy
	return e
}

// Tool returns an ExternalTool error adopting the tool's exit code.
func Tool(name string, code int, stderr []byte) *Error {
	return &Error{
		Category: ExternalTool,
		Message:  fmt.Sprintf("%s exited with code %d", name, code),
		Code:     code,
		Err:      toolOutput(stderr),
	}
}

func toolOutput(stderr []byte) error {
	if len(stderr) == 0 {
		return nil
	}
	return errors.New(string(stderr))
}

// CategoryOf reports the category of err, or 0 when err is not categorised.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return 0
}

// RemedyOf returns the remediation text attached anywhere in err's chain.
func RemedyOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Remedy
	}
	return ""
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) && e.Category == ExternalTool && e.Code > 0 {
		return e.Code
	}
	return 1
}
