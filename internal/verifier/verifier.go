// Package verifier cross-checks a loaded recording against the stream catalog.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/and161185/streamcheck/internal/catalog"
	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/internal/recording"
	"github.com/and161185/streamcheck/internal/report"
	"github.com/and161185/streamcheck/internal/utils"
	"github.com/and161185/streamcheck/model"
	"go.uber.org/zap"
)

// Policy holds the heuristics used for advisories. They are advisory only
// and carry no statistical guarantee.
type Policy struct {
	// RateTolerance is the allowed |actual-nominal|/nominal for continuous streams.
	RateTolerance float64
	// RegularityThreshold flags event streams whose interval std-dev is at or below it.
	RegularityThreshold float64
	// FailOnAdvisory lets advisories on catalog streams fail the verdict.
	FailOnAdvisory bool
}

// DefaultPolicy is a 10% rate tolerance and flags only perfectly regular events.
func DefaultPolicy() Policy {
	return Policy{RateTolerance: 0.10}
}

// Verifier matches recorded streams to catalog entries by name.
type Verifier struct {
	catalog catalog.Catalog
	policy  Policy
	logger  *zap.SugaredLogger
}

// New creates a verifier for cat.
func New(cat catalog.Catalog, policy Policy, logger *zap.SugaredLogger) *Verifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Verifier{catalog: cat, policy: policy, logger: logger}
}

// Run loads path with loader and verifies it. A load failure aborts the run
// with a LoadError and no report.
func (v *Verifier) Run(ctx context.Context, loader recording.Loader, path string) (report.Report, error) {
	streams, header, err := loader.Load(ctx, path)
	if err != nil {
		if !errors.Is(err, errs.ErrLoad) {
			err = &errs.LoadError{Path: path, Err: err}
		}
		return report.Report{}, err
	}
	v.logger.Infow("recording_loaded", "path", path, "streams", len(streams), "session", header.SessionID)
	return v.Verify(streams), nil
}

// Verify evaluates every catalog entry against streams. It never fails:
// mismatches and advisories are values in the report.
func (v *Verifier) Verify(streams []model.RecordedStream) report.Report {
	b := report.NewBuilder(v.policy.FailOnAdvisory)

	byName := make(map[string]model.RecordedStream, len(streams))
	seen := make(map[string]int, len(streams))
	var order []string
	for _, rs := range streams {
		name := rs.Info.Name
		seen[name]++
		if seen[name] == 1 {
			order = append(order, name)
		} else {
			v.logger.Warnw("duplicate_stream", "stream", name, "occurrence", seen[name])
		}
		byName[name] = rs

		b.AddRecorded(v.summarize(rs))
	}
	for _, name := range order {
		if n := seen[name]; n > 1 {
			b.AddAnomaly(fmt.Sprintf("stream %q recorded %d times, using the last one", name, n))
		}
	}

	for _, spec := range v.catalog {
		rs, ok := byName[spec.Name]
		if !ok {
			b.Add(model.Outcome{Name: spec.Name, Status: model.StatusMissing})
			continue
		}
		b.Add(v.evaluate(spec, rs))
	}

	for _, name := range order {
		if _, ok := v.catalog.Lookup(name); !ok {
			b.AddUnexpected(name)
		}
	}

	r := b.Build()
	v.logger.Infow("verification_finished",
		"success", r.Success,
		"expected", len(v.catalog),
		"recorded", len(streams),
		"unexpected", len(r.Unexpected),
	)
	return r
}

func (v *Verifier) evaluate(spec model.StreamSpec, rs model.RecordedStream) model.Outcome {
	st := v.analyze(rs)
	o := model.Outcome{
		Name:           spec.Name,
		Status:         model.StatusMatched,
		SampleCount:    len(rs.Samples),
		ActualRate:     st.actualRate,
		IntervalStdDev: st.stdDev,
	}
	if reasons := mismatches(spec, rs.Info); len(reasons) > 0 {
		o.Status = model.StatusMismatched
		o.Reasons = reasons
		return o
	}
	o.Advisories = st.advisories
	for _, a := range o.Advisories {
		v.logger.Warnw("advisory", "stream", spec.Name, "code", a.Code, "message", a.Message)
	}
	return o
}

func (v *Verifier) summarize(rs model.RecordedStream) report.Recorded {
	st := v.analyze(rs)
	r := report.Recorded{
		Info:           rs.Info,
		SampleCount:    len(rs.Samples),
		Head:           rs.Samples[:min(report.HeadSamples, len(rs.Samples))],
		ActualRate:     st.actualRate,
		IntervalStdDev: st.stdDev,
		Advisories:     st.advisories,
		Label:          report.LabelInfo,
	}
	if n := len(rs.Samples); n > 0 {
		last := rs.Samples[n-1]
		r.Last = &last
	}
	if spec, ok := v.catalog.Lookup(rs.Info.Name); ok {
		r.Label = report.LabelVerified
		if reasons := mismatches(spec, rs.Info); len(reasons) > 0 {
			r.Label = report.LabelMismatch
			r.Reasons = reasons
		}
	}
	return r
}

// mismatches lists every header field that differs from the catalog entry.
func mismatches(spec model.StreamSpec, info model.StreamInfo) []string {
	var reasons []string
	if info.Type != spec.Type {
		reasons = append(reasons, fmt.Sprintf("type: want %q, got %q", spec.Type, info.Type))
	}
	if info.ChannelCount != spec.ChannelCount {
		reasons = append(reasons, fmt.Sprintf("channel_count: want %d, got %d", spec.ChannelCount, info.ChannelCount))
	}
	if info.NominalRate != spec.NominalRate {
		reasons = append(reasons, fmt.Sprintf("nominal_rate: want %v, got %v", spec.NominalRate, info.NominalRate))
	}
	return reasons
}

type stats struct {
	actualRate *float64
	stdDev     *float64
	advisories []model.Advisory
}

// analyze derives timing statistics from at least two samples. Streams with a
// positive nominal rate get an actual rate, irregular ones an interval std-dev.
func (v *Verifier) analyze(rs model.RecordedStream) stats {
	var st stats
	if len(rs.Samples) < 2 {
		return st
	}

	ts := rs.Timestamps()
	if !slices.IsSorted(ts) {
		st.advisories = append(st.advisories, model.Advisory{
			Code:    model.AdvisoryNonMonotonic,
			Message: "timestamps are not in ascending order, statistics use the sorted timestamps",
		})
		slices.Sort(ts)
	}

	nominal := rs.Info.NominalRate
	if nominal > 0 {
		duration := ts[len(ts)-1] - ts[0]
		if duration <= 0 {
			st.advisories = append(st.advisories, model.Advisory{
				Code:    model.AdvisoryZeroDuration,
				Message: fmt.Sprintf("%d samples share one timestamp", len(ts)),
			})
			return st
		}
		rate := float64(len(ts)-1) / duration
		st.actualRate = utils.Ptr(rate)
		if dev := math.Abs(rate-nominal) / nominal; dev > v.policy.RateTolerance {
			st.advisories = append(st.advisories, model.Advisory{
				Code: model.AdvisoryRateDeviation,
				Message: fmt.Sprintf("actual rate %.2f Hz deviates %.1f%% from nominal %v Hz (tolerance %.1f%%)",
					rate, dev*100, nominal, v.policy.RateTolerance*100),
			})
		}
		return st
	}

	sd := intervalStdDev(ts)
	st.stdDev = utils.Ptr(sd)
	if sd <= v.policy.RegularityThreshold {
		st.advisories = append(st.advisories, model.Advisory{
			Code:    model.AdvisoryRegularTiming,
			Message: fmt.Sprintf("interval std-dev %.6fs is at or below %vs, timing looks too regular", sd, v.policy.RegularityThreshold),
		})
	}
	return st
}

// intervalStdDev is the population standard deviation of consecutive
// differences of sorted timestamps.
func intervalStdDev(ts []float64) float64 {
	n := float64(len(ts) - 1)
	var sum float64
	for i := 1; i < len(ts); i++ {
		sum += ts[i] - ts[i-1]
	}
	mean := sum / n

	var sq float64
	for i := 1; i < len(ts); i++ {
		d := ts[i] - ts[i-1] - mean
		sq += d * d
	}
	return math.Sqrt(sq / n)
}
