// Package report folds per-stream verification outcomes into a verdict and
// renders it for people and for machines.
package report

import (
	"github.com/and161185/streamcheck/model"
)

// Label classifies a recorded stream for display.
type Label string

const (
	LabelVerified Label = "VERIFIED"
	LabelMismatch Label = "MISMATCH"
	LabelInfo     Label = "INFO" // not in the catalog
)

// HeadSamples is how many leading samples a recorded stream summary keeps.
const HeadSamples = 5

// Recorded summarises one recorded stream as it appeared in the recording.
type Recorded struct {
	Info           model.StreamInfo `json:"info"`
	SampleCount    int              `json:"sample_count"`
	Head           []model.Sample   `json:"head,omitempty"`
	Last           *model.Sample    `json:"last,omitempty"`
	ActualRate     *float64         `json:"actual_rate,omitempty"`
	IntervalStdDev *float64         `json:"interval_std_dev,omitempty"`
	Advisories     []model.Advisory `json:"advisories,omitempty"`
	Label          Label            `json:"label"`
	Reasons        []string         `json:"reasons,omitempty"`
}

// Report is the result of one verification run.
type Report struct {
	Outcomes   []model.Outcome `json:"outcomes"`
	Unexpected []string        `json:"unexpected,omitempty"`
	Anomalies  []string        `json:"anomalies,omitempty"`
	Recorded   []Recorded      `json:"recorded,omitempty"`
	Success    bool            `json:"success"`
}

// Outcome returns the outcome for the catalog entry called name.
func (r Report) Outcome(name string) (model.Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return model.Outcome{}, false
}

// Builder accumulates outcomes in the order they are added.
type Builder struct {
	// FailOnAdvisory makes any advisory on a catalog outcome fail the verdict.
	FailOnAdvisory bool

	report Report
}

// NewBuilder returns an empty builder.
func NewBuilder(failOnAdvisory bool) *Builder {
	return &Builder{FailOnAdvisory: failOnAdvisory}
}

// Add records the outcome of one catalog entry.
func (b *Builder) Add(o model.Outcome) {
	b.report.Outcomes = append(b.report.Outcomes, o)
}

// AddUnexpected records a recorded stream that is not in the catalog.
func (b *Builder) AddUnexpected(name string) {
	b.report.Unexpected = append(b.report.Unexpected, name)
}

// AddAnomaly records a problem with the recording itself, such as a duplicate name.
func (b *Builder) AddAnomaly(msg string) {
	b.report.Anomalies = append(b.report.Anomalies, msg)
}

// AddRecorded records the display summary of one recorded stream.
func (b *Builder) AddRecorded(r Recorded) {
	b.report.Recorded = append(b.report.Recorded, r)
}

// Build computes the verdict. Unexpected streams and anomalies never affect it.
func (b *Builder) Build() Report {
	r := b.report
	r.Success = true
	for _, o := range r.Outcomes {
		if o.Status != model.StatusMatched {
			r.Success = false
			break
		}
		if b.FailOnAdvisory && len(o.Advisories) > 0 {
			r.Success = false
			break
		}
	}
	return r
}
