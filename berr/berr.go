// Package berr defines the build driver's uniform error representation.
// The source build tool this driver is modeled on (like blueprint, which
// this repo depends on only for its pathtools/proptools helpers) reports fatal
// problems as accumulated []error values rather than by throwing typed
// exceptions. This package follows the same shape: one Kind enum and one
// BuildError carrying a reference chain for diagnostics, instead of a
// distinct Go error type per failure mode.
package berr

import (
	"fmt"
	"strings"
)

// Kind classifies a BuildError by the stage that produced it.
type Kind int

const (
	ConfigurationError Kind = iota
	RulesError
	DependencyError
	GraphError
	ScopeViolation
	LicenseViolation
	SDKError
)

func (k Kind) String() string {
	switch k {
	case ConfigurationError:
		return "ConfigurationError"
	case RulesError:
		return "RulesError"
	case DependencyError:
		return "DependencyError"
	case GraphError:
		return "GraphError"
	case ScopeViolation:
		return "ScopeViolation"
	case LicenseViolation:
		return "LicenseViolation"
	case SDKError:
		return "SDKError"
	default:
		panic(fmt.Errorf("berr: invalid Kind %d", int(k)))
	}
}

// BuildError is the one error type every component in this repo returns
// for a validation or graph-construction failure. Chain records the
// reference chain carried through module/rule creation.
type BuildError struct {
	Kind    Kind
	Message string
	Chain   []string
}

func (e *BuildError) Error() string {
	if len(e.Chain) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (via %s)", e.Kind, e.Message, strings.Join(e.Chain, " -> "))
}

// New creates a BuildError with no reference chain.
func New(kind Kind, format string, args ...interface{}) *BuildError {
	return &BuildError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithChain creates a BuildError carrying the given reference chain.
func WithChain(kind Kind, chain []string, format string, args ...interface{}) *BuildError {
	return &BuildError{Kind: kind, Message: fmt.Sprintf(format, args...), Chain: append([]string(nil), chain...)}
}

// Severity describes whether a BuildError should abort the build or
// merely be recorded.
type Severity int

const (
	Fatal Severity = iota
	Warning
)

// Diagnostic is one line of the ordered diagnostics list the driver
// emits.
type Diagnostic struct {
	Severity Severity
	Err      *BuildError
}

func (d Diagnostic) String() string {
	prefix := "error"
	if d.Severity == Warning {
		prefix = "warning"
	}
	return fmt.Sprintf("%s: %s", prefix, d.Err.Error())
}

// Diagnostics accumulates Diagnostic values across a build and reports
// whether any fatal diagnostic was recorded.
type Diagnostics struct {
	entries []Diagnostic
}

func (d *Diagnostics) Add(severity Severity, err *BuildError) {
	d.entries = append(d.entries, Diagnostic{Severity: severity, Err: err})
}

func (d *Diagnostics) Fatal(err *BuildError) {
	d.Add(Fatal, err)
}

func (d *Diagnostics) Warn(err *BuildError) {
	d.Add(Warning, err)
}

func (d *Diagnostics) HasFatal() bool {
	for _, e := range d.entries {
		if e.Severity == Fatal {
			return true
		}
	}
	return false
}

func (d *Diagnostics) Entries() []Diagnostic {
	return d.entries
}

func (d *Diagnostics) Strings() []string {
	out := make([]string, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.String()
	}
	return out
}
