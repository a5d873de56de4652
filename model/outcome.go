package model

// Status is the verification verdict for one expected stream.
type Status string

const (
	StatusMatched    Status = "matched"
	StatusMismatched Status = "mismatched"
	StatusMissing    Status = "missing"
)

// AdvisoryCode names a non-fatal observation.
type AdvisoryCode string

const (
	AdvisoryRateDeviation AdvisoryCode = "rate_deviation"
	AdvisoryZeroDuration  AdvisoryCode = "zero_duration"
	AdvisoryRegularTiming AdvisoryCode = "regular_timing"
	AdvisoryNonMonotonic  AdvisoryCode = "non_monotonic_timestamps"
)

// Advisory is surfaced in the report but does not fail verification by itself.
type Advisory struct {
	Code    AdvisoryCode `json:"code"`
	Message string       `json:"message"`
}

// Outcome is the verification result for one catalog entry.
type Outcome struct {
	Name           string     `json:"name"`
	Status         Status     `json:"status"`
	Reasons        []string   `json:"reasons,omitempty"`
	Advisories     []Advisory `json:"advisories,omitempty"`
	SampleCount    int        `json:"sample_count"`
	ActualRate     *float64   `json:"actual_rate,omitempty"`
	IntervalStdDev *float64   `json:"interval_std_dev,omitempty"`
}

// HasAdvisory reports whether an advisory with the given code was raised.
func (o Outcome) HasAdvisory(code AdvisoryCode) bool {
	for _, a := range o.Advisories {
		if a.Code == code {
			return true
		}
	}
	return false
}
