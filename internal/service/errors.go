package service

import "fmt"

// Severity classifies a pipeline stage failure. Fatal aborts the job;
// recoverable applies the stage's fallback and continues; ignorable is
// logged only (e.g. one image among several failing to generate).
type Severity int

const (
	SeverityIgnorable Severity = iota
	SeverityRecoverable
	SeverityFatal
)

// StageError carries a failure out of one pipeline stage. Recoverable
// errors never propagate past their stage; only fatal ones reach the
// outer handler that performs the error transition.
type StageError struct {
	Stage    string
	Severity Severity
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func fatalErr(stage string, err error) *StageError {
	return &StageError{Stage: stage, Severity: SeverityFatal, Err: err}
}

func recoverableErr(stage string, err error) *StageError {
	return &StageError{Stage: stage, Severity: SeverityRecoverable, Err: err}
}
