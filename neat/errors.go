package neat

import (
	"errors"
	"fmt"
)

// Sentinel errors for the four failure classes of the engine. The typed errors below
// unwrap to one of these, so callers can use errors.Is without knowing the concrete type.
var (
	ErrNoEligibleCandidate = errors.New("no eligible candidate")
	ErrAlignment           = errors.New("innovation alignment violated")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrEvaluation          = errors.New("fitness evaluation failed")
)

// StructuralError reports a mutation operator that found nothing to act on.
// It is recovered locally: the operator is skipped for that offspring.
type StructuralError struct {
	Op     string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrNoEligibleCandidate, e.Reason)
}

func (e *StructuralError) Unwrap() error { return ErrNoEligibleCandidate }

// AlignmentError reports a connection gene whose innovation number is not known to the
// registry, or is known with different endpoints. It aborts the generation.
type AlignmentError struct {
	Innovation int
	GenomeKey  int
	Got        ConnectionKey
	Want       *ConnectionKey // nil when the innovation was never registered
}

func (e *AlignmentError) Error() string {
	if e.Want == nil {
		return fmt.Sprintf("%s: genome %d carries unregistered innovation %d (%d->%d)",
			ErrAlignment, e.GenomeKey, e.Innovation, e.Got.InNodeID, e.Got.OutNodeID)
	}
	return fmt.Sprintf("%s: genome %d innovation %d is %d->%d, registry has %d->%d",
		ErrAlignment, e.GenomeKey, e.Innovation, e.Got.InNodeID, e.Got.OutNodeID, e.Want.InNodeID, e.Want.OutNodeID)
}

func (e *AlignmentError) Unwrap() error { return ErrAlignment }

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// EvaluationError wraps a failure of the fitness collaborator for one genome.
type EvaluationError struct {
	GenomeKey int
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s for genome %d: %v", ErrEvaluation, e.GenomeKey, e.Err)
}

func (e *EvaluationError) Unwrap() []error { return []error{ErrEvaluation, e.Err} }
