package scribe

import (
	"errors"
	"fmt"
)

// Stage names a pipeline phase for diagnostics and failure reporting.
type Stage string

const (
	StageClassify   Stage = "classify"
	StageTranscribe Stage = "transcribe"
	StageExtract    Stage = "extract"
	StagePrompt     Stage = "prompt"
	StageGenerate   Stage = "generate"
	StageValidate   Stage = "validate"
)

// Sentinels for the failure taxonomy. Callers branch with errors.Is; the
// StageError wrapper adds the stage and a caller-safe reason.
var (
	ErrUnsupportedMedia    = errors.New("unsupported media kind")
	ErrTranscription       = errors.New("transcription failed")
	ErrExtraction          = errors.New("document extraction failed")
	ErrGeneration          = errors.New("generation failed")
	ErrValidationExhausted = errors.New("note validation retries exhausted")
	ErrCanceled            = errors.New("pipeline invocation canceled")
)

// StageError is the typed failure a pipeline invocation terminates with.
// Reason is structural diagnostics only and never quotes clinical content.
type StageError struct {
	Stage  Stage
	Reason string
	cause  error
	kind   error
}

func (e *StageError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

func (e *StageError) Unwrap() []error {
	unwrapped := make([]error, 0, 2)
	if e.kind != nil {
		unwrapped = append(unwrapped, e.kind)
	}
	if e.cause != nil {
		unwrapped = append(unwrapped, e.cause)
	}
	return unwrapped
}

// Kind returns the taxonomy sentinel this failure belongs to.
func (e *StageError) Kind() error {
	return e.kind
}

func newStageError(stage Stage, kind error, reason string, cause error) *StageError {
	return &StageError{
		Stage:  stage,
		Reason: reason,
		cause:  cause,
		kind:   kind,
	}
}

// AsStageError unwraps err to its StageError, when it carries one.
func AsStageError(err error) (*StageError, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr, true
	}
	return nil, false
}
