package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// BuildReport captures high-level metrics about one book build.
type BuildReport struct {
	SchemaVersion int // explicit schema version for forward-compatible consumers
	BuildID       string
	Start         time.Time
	End           time.Time
	Errors        []error // fatal errors causing build abortion (at most one today)
	Warnings      []error // non-fatal issues (missing converter, partial font export)

	StageDurations  map[string]time.Duration
	StageErrorKinds map[string]string     // stage -> error kind (fatal|warning|canceled)
	StageCounts     map[string]StageCount // per-stage classification counts

	SourceLines    int    // lines in the flattened LaTeX source
	FontsConverted int    // fonts successfully exported to woff2
	FontsSkipped   int    // mapped fonts whose source file was absent
	FontsFailed    int    // fonts every export backend rejected
	Pages          int    // HTML pages postprocessed successfully
	PagesFailed    int    // HTML pages that failed rewriting
	BrokenLinks    int    // internal links that failed verification
	ConverterRan   bool   // true if the external converter executed successfully
	SkipReason     string // why the converter was short-circuited; empty if it ran

	Outcome  string       // derived overall outcome (string form for JSON; use OutcomeT for typed)
	OutcomeT BuildOutcome `json:"-"` // typed outcome mirror (source of truth)

	// Issues captures structured machine-parsable issue taxonomy entries.
	Issues []ReportIssue
}

// ReportIssueCode enumerates machine-parseable issue identifiers.
// These codes are stable contract and should only be appended.
type ReportIssueCode string

const (
	IssueFlattenFailure   ReportIssueCode = "FLATTEN_FAILURE"
	IssueFontExport       ReportIssueCode = "FONT_EXPORT_FAILURE"
	IssueConverterMissing ReportIssueCode = "CONVERTER_MISSING"
	IssueConverterFailure ReportIssueCode = "CONVERTER_FAILURE"
	IssuePageRewrite      ReportIssueCode = "PAGE_REWRITE_FAILURE"
	IssueBrokenLink       ReportIssueCode = "BROKEN_LINK"
	IssueCanceled         ReportIssueCode = "BUILD_CANCELED"
	IssueGenericStage     ReportIssueCode = "GENERIC_STAGE_ERROR"
)

// IssueSeverity represents normalized severity levels.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// ReportIssue is a structured taxonomy entry describing a discrete problem.
// Message is human-friendly; Code + Stage allow automated handling; Transient
// hints retry suitability.
type ReportIssue struct {
	Code      ReportIssueCode `json:"code"`
	Stage     string          `json:"stage"`
	Severity  IssueSeverity   `json:"severity"`
	Message   string          `json:"message"`
	Transient bool            `json:"transient"`
}

// AddIssue appends a structured issue and mirrors it into the legacy
// Errors/Warnings slices based on severity. Provide err=nil for purely
// informational issues.
func (r *BuildReport) AddIssue(code ReportIssueCode, stage string, severity IssueSeverity, msg string, transient bool, err error) {
	issue := ReportIssue{Code: code, Stage: stage, Severity: severity, Message: msg, Transient: transient}
	r.Issues = append(r.Issues, issue)
	if err != nil {
		switch severity {
		case SeverityError:
			r.Errors = append(r.Errors, err)
		case SeverityWarning:
			r.Warnings = append(r.Warnings, err)
		}
	}
}

// StageCount aggregates counts of outcomes for a stage.
type StageCount struct {
	Success  int
	Warning  int
	Fatal    int
	Canceled int
}

func newBuildReport(buildID string) *BuildReport {
	return &BuildReport{
		SchemaVersion:   1,
		BuildID:         buildID,
		Start:           time.Now(),
		StageDurations:  make(map[string]time.Duration),
		StageErrorKinds: make(map[string]string),
		StageCounts:     make(map[string]StageCount),
	}
}

func (r *BuildReport) finish() { r.End = time.Now() }

// Summary returns a human-readable single-line summary.
func (r *BuildReport) Summary() string {
	dur := r.End.Sub(r.Start)
	return fmt.Sprintf("build=%s duration=%s pages=%d fonts=%d errors=%d warnings=%d stages=%d outcome=%s",
		r.BuildID, dur.Truncate(time.Millisecond), r.Pages, r.FontsConverted,
		len(r.Errors), len(r.Warnings), len(r.StageDurations), r.Outcome)
}

// deriveOutcome sets the Outcome field based on recorded errors/warnings.
func (r *BuildReport) deriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			if se, ok := e.(*StageError); ok && se.Kind == StageErrorCanceled {
				r.setOutcome(OutcomeCanceled)
				return
			}
		}
		r.setOutcome(OutcomeFailed)
		return
	}
	if len(r.Warnings) > 0 {
		r.setOutcome(OutcomeWarning)
		return
	}
	r.setOutcome(OutcomeSuccess)
}

// setOutcome sets both typed and legacy string forms.
func (r *BuildReport) setOutcome(o BuildOutcome) {
	r.OutcomeT = o
	r.Outcome = string(o)
}

// Persist writes the report atomically into the provided root directory.
// It writes two files:
//
//	build-report.json  (machine readable)
//	build-report.txt   (human summary)
//
// Best effort; errors are returned for caller logging but do not change
// build outcome.
func (r *BuildReport) Persist(root string) error {
	if r.End.IsZero() { // ensure finished
		r.finish()
		r.deriveOutcome()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("ensure root for report: %w", err)
	}
	jb, err := json.MarshalIndent(r.sanitizedCopy(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	jsonPath := filepath.Join(root, "build-report.json")
	tmpJSON := jsonPath + ".tmp"
	if err := os.WriteFile(tmpJSON, jb, 0644); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmpJSON, jsonPath); err != nil {
		return fmt.Errorf("atomic rename json: %w", err)
	}
	summaryPath := filepath.Join(root, "build-report.txt")
	tmpTxt := summaryPath + ".tmp"
	if err := os.WriteFile(tmpTxt, []byte(r.Summary()+"\n"), 0644); err != nil {
		return fmt.Errorf("write temp report summary: %w", err)
	}
	if err := os.Rename(tmpTxt, summaryPath); err != nil {
		return fmt.Errorf("atomic rename summary: %w", err)
	}
	return nil
}

// sanitizedCopy returns a copy with error fields converted to strings for
// JSON friendliness.
func (r *BuildReport) sanitizedCopy() *BuildReportSerializable {
	// Ensure non-nil maps so JSON shows {} rather than null.
	if r.StageDurations == nil {
		r.StageDurations = map[string]time.Duration{}
	}
	if r.StageErrorKinds == nil {
		r.StageErrorKinds = map[string]string{}
	}
	if r.StageCounts == nil {
		r.StageCounts = map[string]StageCount{}
	}

	s := &BuildReportSerializable{
		SchemaVersion:   r.SchemaVersion,
		BuildID:         r.BuildID,
		Start:           r.Start,
		End:             r.End,
		Errors:          make([]string, len(r.Errors)),
		Warnings:        make([]string, len(r.Warnings)),
		StageDurations:  r.StageDurations,
		StageErrorKinds: r.StageErrorKinds,
		StageCounts:     r.StageCounts,
		SourceLines:     r.SourceLines,
		FontsConverted:  r.FontsConverted,
		FontsSkipped:    r.FontsSkipped,
		FontsFailed:     r.FontsFailed,
		Pages:           r.Pages,
		PagesFailed:     r.PagesFailed,
		BrokenLinks:     r.BrokenLinks,
		ConverterRan:    r.ConverterRan,
		SkipReason:      r.SkipReason,
		Outcome:         r.Outcome,
		Issues:          r.Issues,
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	return s
}

// BuildReportSerializable mirrors BuildReport but with string errors for JSON
// output.
type BuildReportSerializable struct {
	SchemaVersion   int                      `json:"schema_version"`
	BuildID         string                   `json:"build_id"`
	Start           time.Time                `json:"start"`
	End             time.Time                `json:"end"`
	Errors          []string                 `json:"errors"`
	Warnings        []string                 `json:"warnings"`
	StageDurations  map[string]time.Duration `json:"stage_durations"`
	StageErrorKinds map[string]string        `json:"stage_error_kinds"`
	StageCounts     map[string]StageCount    `json:"stage_counts"`
	SourceLines     int                      `json:"source_lines"`
	FontsConverted  int                      `json:"fonts_converted"`
	FontsSkipped    int                      `json:"fonts_skipped"`
	FontsFailed     int                      `json:"fonts_failed"`
	Pages           int                      `json:"pages"`
	PagesFailed     int                      `json:"pages_failed"`
	BrokenLinks     int                      `json:"broken_links"`
	ConverterRan    bool                     `json:"converter_ran"`
	SkipReason      string                   `json:"skip_reason,omitempty"`
	Outcome         string                   `json:"outcome"`
	Issues          []ReportIssue            `json:"issues"`
}
