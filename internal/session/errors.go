package session

import (
	"errors"
	"fmt"
)

var ErrTooManyFailures = errors.New("too many consecutive failures")

type Stage string

const (
	StageWake       Stage = "wake"
	StageRecord     Stage = "record"
	StageTranscribe Stage = "transcribe"
	StageRoute      Stage = "route"
	StageGenerate   Stage = "generate"
	StageSynthesize Stage = "synthesize"
	StagePlay       Stage = "play"
)

// StageError names the collaborator that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the failing stage recorded in err, or "" when there is none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
