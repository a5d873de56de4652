// Package model contains core data types for the project.
package model

import (
	"strings"
	"unicode"
)

// Kind defines how a stream is sampled: at a fixed rate or irregularly.
type Kind string

const (
	Continuous Kind = "continuous" // Continuous is a fixed-rate multi-channel numeric stream.
	Event      Kind = "event"      // Event is an irregular single-channel label stream.
)

// Sample formats advertised to the transport.
const (
	FormatFloat32 = "float32"
	FormatDouble  = "double64"
	FormatString  = "string"
	FormatInt8    = "int8"
	FormatInt16   = "int16"
	FormatInt32   = "int32"
	FormatInt64   = "int64"
)

// IntervalMs bounds the gap between two event samples, in milliseconds.
type IntervalMs struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// StreamSpec declares one broadcast stream.
type StreamSpec struct {
	Name         string     `json:"name" yaml:"name"`
	Kind         Kind       `json:"kind" yaml:"kind"`
	Type         string     `json:"type" yaml:"type"`
	ChannelCount int        `json:"channel_count" yaml:"channel_count"`
	NominalRate  float64    `json:"nominal_rate" yaml:"nominal_rate"`
	Format       string     `json:"format,omitempty" yaml:"format,omitempty"`
	Amplitude    float64    `json:"amplitude,omitempty" yaml:"amplitude,omitempty"`     // Continuous only.
	Vocabulary   []string   `json:"vocabulary,omitempty" yaml:"vocabulary,omitempty"`   // Event only.
	Interval     IntervalMs `json:"interval_ms,omitempty" yaml:"interval_ms,omitempty"` // Event only.
}

// ID returns the transport-level unique identifier of the stream.
// It is derived from the name only, so it is stable across runs.
func (s StreamSpec) ID() string {
	return StreamID(s.Name)
}

// SampleFormat returns the declared format or the default for the stream kind.
func (s StreamSpec) SampleFormat() string {
	if s.Format != "" {
		return s.Format
	}
	if s.Kind == Event {
		return FormatString
	}
	return FormatFloat32
}

// Info returns the header advertised for the stream.
func (s StreamSpec) Info() StreamInfo {
	return StreamInfo{
		Name:         s.Name,
		Type:         s.Type,
		ChannelCount: s.ChannelCount,
		NominalRate:  s.NominalRate,
		Format:       s.SampleFormat(),
		SourceID:     s.ID(),
	}
}

// StreamID lower-cases name, strips all whitespace and appends "_uid".
func StreamID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	b.WriteString("_uid")
	return b.String()
}

// StreamInfo is the stream header as seen by the transport and the recorder.
type StreamInfo struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	ChannelCount int     `json:"channel_count"`
	NominalRate  float64 `json:"nominal_rate"`
	Format       string  `json:"format"`
	SourceID     string  `json:"source_id"`
}

// Sample is one multi-channel observation. Values hold float64 or string.
type Sample struct {
	Timestamp float64 `json:"ts"`
	Values    []any   `json:"values"`
}

// RecordedStream is a stream as captured by a recorder.
type RecordedStream struct {
	Info    StreamInfo `json:"info"`
	Samples []Sample   `json:"samples"`
}

// Timestamps returns the timestamps of all samples in recorded order.
func (rs RecordedStream) Timestamps() []float64 {
	ts := make([]float64, len(rs.Samples))
	for i, s := range rs.Samples {
		ts[i] = s.Timestamp
	}
	return ts
}
