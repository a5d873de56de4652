package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/and161185/streamcheck/model"
)

const (
	maxChannelsShown = 5
	separator        = "----------------------------------------"
)

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes one block per recorded stream, a summary line per expected
// stream and the verdict.
func WriteText(w io.Writer, r Report) error {
	tw := &textWriter{w: w}

	for i, rs := range r.Recorded {
		tw.printf("--- Stream %d: %s ---\n", i+1, rs.Info.Name)
		tw.printf("  Type: %s\n", rs.Info.Type)
		tw.printf("  Channels: %d\n", rs.Info.ChannelCount)
		tw.printf("  Nominal rate: %s Hz\n", formatFloat(rs.Info.NominalRate))
		tw.printf("  Total samples: %d\n", rs.SampleCount)
		if len(rs.Head) > 0 {
			tw.printf("  First %d samples:\n", len(rs.Head))
			for j, s := range rs.Head {
				tw.printf("    %d: %s @ %.4f\n", j+1, formatValues(s.Values, maxChannelsShown), s.Timestamp)
			}
		}
		if rs.Last != nil {
			tw.printf("  Last sample: %s @ %.4f\n", formatValues(rs.Last.Values, len(rs.Last.Values)), rs.Last.Timestamp)
		}
		if rs.ActualRate != nil {
			tw.printf("  Actual rate: %.2f Hz\n", *rs.ActualRate)
		}
		if rs.IntervalStdDev != nil {
			tw.printf("  Interval std-dev: %.4fs\n", *rs.IntervalStdDev)
		}
		for _, a := range rs.Advisories {
			tw.printf("  ADVISORY %s: %s\n", a.Code, a.Message)
		}
		switch rs.Label {
		case LabelVerified:
			tw.printf("  [%s] matches the catalog\n", rs.Label)
		case LabelMismatch:
			tw.printf("  [%s] %s\n", rs.Label, strings.Join(rs.Reasons, "; "))
		default:
			tw.printf("  [%s] not in the catalog\n", rs.Label)
		}
		tw.printf("%s\n", separator)
	}

	tw.printf("\n--- Summary ---\n")
	for _, o := range r.Outcomes {
		switch o.Status {
		case model.StatusMatched:
			tw.printf("✓ %s: found and verified", o.Name)
			if len(o.Advisories) > 0 {
				tw.printf(" (%d advisories)", len(o.Advisories))
			}
			tw.printf("\n")
		case model.StatusMismatched:
			tw.printf("✗ %s: mismatched (%s)\n", o.Name, strings.Join(o.Reasons, "; "))
		default:
			tw.printf("✗ %s: missing\n", o.Name)
		}
	}
	if len(r.Unexpected) > 0 {
		tw.printf("Unexpected streams: %s\n", strings.Join(r.Unexpected, ", "))
	}
	for _, a := range r.Anomalies {
		tw.printf("Anomaly: %s\n", a)
	}

	if r.Success {
		tw.printf("\nRESULT: PASS, all expected streams were found and verified\n")
	} else {
		tw.printf("\nRESULT: FAIL, some expected streams are missing or misconfigured\n")
	}
	return tw.err
}

// textWriter keeps the first write error so rendering reads straight through.
type textWriter struct {
	w   io.Writer
	err error
}

func (tw *textWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatValues(values []any, limit int) string {
	parts := make([]string, 0, min(limit, len(values)))
	for _, v := range values[:min(limit, len(values))] {
		switch x := v.(type) {
		case float64:
			parts = append(parts, strconv.FormatFloat(x, 'g', 6, 64))
		case string:
			parts = append(parts, strconv.Quote(x))
		default:
			parts = append(parts, fmt.Sprint(x))
		}
	}
	s := "[" + strings.Join(parts, " ") + "]"
	if len(values) > limit {
		s += "..."
	}
	return s
}
