// Package pipeline orchestrates the book build: flatten the LaTeX source,
// normalize it for conversion, export web fonts, run the external converter,
// and postprocess the chunked HTML. Stages run in order; a warning-class
// failure records and continues, a fatal one aborts the build.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/texweb/internal/config"
	"git.home.luguber.info/inful/texweb/internal/observability"
)

// Stage is a discrete unit of work in the book build.
type Stage func(ctx context.Context, bs *BuildState) error

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Helpers to classify errors.
func newFatalStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}
func newWarnStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}
func newCanceledStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// BuildState carries mutable state and metrics across stages.
type BuildState struct {
	Config  *config.Config
	Report  *BuildReport
	Timings map[string]time.Duration
	start   time.Time

	// FlatFile is the flattened single-file LaTeX source, written by the
	// flatten stage and consumed by preprocess.
	FlatFile string
	// PrepFile is the normalized LaTeX fed to the converter.
	PrepFile string
	// OutputDir is the final chunked-HTML destination.
	OutputDir string
	// WorkDir holds intermediate artifacts under the output directory.
	WorkDir string
}

// newBuildState constructs a BuildState.
func newBuildState(cfg *config.Config, report *BuildReport) *BuildState {
	return &BuildState{
		Config:  cfg,
		Report:  report,
		Timings: make(map[string]time.Duration),
		start:   time.Now(),
	}
}

type namedStage struct {
	name string
	fn   Stage
}

// runStages executes stages in order, recording timing and stopping on first
// fatal error.
func runStages(ctx context.Context, bs *BuildState, stages []namedStage) error {
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(st.name, ctx.Err())
			bs.Report.Errors = append(bs.Report.Errors, se)
			bs.Report.StageErrorKinds[st.name] = string(se.Kind)
			return se
		default:
		}
		t0 := time.Now()
		err := st.fn(observability.WithStage(ctx, st.name), bs)
		dur := time.Since(t0)
		bs.Timings[st.name] = dur
		bs.Report.StageDurations[st.name] = dur
		if err != nil {
			var se *StageError
			if errors.As(err, &se) {
				bs.Report.StageErrorKinds[st.name] = string(se.Kind)
				sc := bs.Report.StageCounts[st.name]
				switch se.Kind {
				case StageErrorWarning:
					sc.Warning++
				case StageErrorCanceled:
					sc.Canceled++
				case StageErrorFatal:
					sc.Fatal++
				}
				bs.Report.StageCounts[st.name] = sc
				switch se.Kind {
				case StageErrorWarning:
					bs.Report.Warnings = append(bs.Report.Warnings, se)
					continue // proceed to next stage
				case StageErrorCanceled:
					bs.Report.Errors = append(bs.Report.Errors, se)
					return se
				case StageErrorFatal:
					bs.Report.Errors = append(bs.Report.Errors, se)
					return se
				}
			} else {
				// Wrap unknown errors as fatal by default.
				se = newFatalStageError(st.name, err)
				bs.Report.StageErrorKinds[st.name] = string(se.Kind)
				sc := bs.Report.StageCounts[st.name]
				sc.Fatal++
				bs.Report.StageCounts[st.name] = sc
				bs.Report.Errors = append(bs.Report.Errors, se)
				return se
			}
		} else {
			sc := bs.Report.StageCounts[st.name]
			sc.Success++
			bs.Report.StageCounts[st.name] = sc
		}
	}
	return nil
}
