// Package catalog declares the streams the broadcaster emits and the verifier expects.
package catalog

import (
	"fmt"
	"math"
	"os"

	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/model"
	"gopkg.in/yaml.v3"
)

// Catalog is an ordered list of stream specifications.
type Catalog []model.StreamSpec

var markerVocabulary = []string{"Onset", "Stimulus", "Response", "Error", "Event_A", "Event_B"}

// Default returns the built-in test catalog: four continuous EEG streams and one marker stream.
func Default() Catalog {
	return Catalog{
		{Name: "EEG_Stream_1Hz", Kind: model.Continuous, Type: "EEG", ChannelCount: 4, NominalRate: 1, Amplitude: 50},
		{Name: "EEG_Stream_10Hz", Kind: model.Continuous, Type: "EEG", ChannelCount: 8, NominalRate: 10, Amplitude: 100},
		{Name: "EEG_Stream_250Hz", Kind: model.Continuous, Type: "EEG", ChannelCount: 16, NominalRate: 250, Amplitude: 200},
		{Name: "EEG_Stream_500Hz", Kind: model.Continuous, Type: "EEG", ChannelCount: 32, NominalRate: 500, Amplitude: 400},
		{
			Name:         "Test_Markers",
			Kind:         model.Event,
			Type:         "Markers",
			ChannelCount: 1,
			NominalRate:  0,
			Vocabulary:   append([]string(nil), markerVocabulary...),
			Interval:     model.IntervalMs{Min: 500, Max: 2000},
		},
	}
}

type catalogFile struct {
	Streams []model.StreamSpec `yaml:"streams"`
}

// Load reads a YAML catalog file and validates it.
func Load(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML catalog document and validates it.
func Parse(raw []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := Catalog(f.Streams)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the catalog invariants. The first violation is returned.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return &errs.CatalogError{Reason: "no streams declared"}
	}
	seen := make(map[string]struct{}, len(c))
	ids := make(map[string]string, len(c))
	for _, s := range c {
		if s.Name == "" {
			return &errs.CatalogError{Reason: "stream without a name"}
		}
		if _, dup := seen[s.Name]; dup {
			return &errs.CatalogError{Name: s.Name, Reason: "duplicate name"}
		}
		seen[s.Name] = struct{}{}
		if other, dup := ids[s.ID()]; dup {
			return &errs.CatalogError{Name: s.Name, Reason: fmt.Sprintf("id %s collides with %q", s.ID(), other)}
		}
		ids[s.ID()] = s.Name

		if err := validateSpec(s); err != nil {
			return err
		}
	}
	return nil
}

func validateSpec(s model.StreamSpec) error {
	bad := func(format string, args ...any) error {
		return &errs.CatalogError{Name: s.Name, Reason: fmt.Sprintf(format, args...)}
	}
	if s.ChannelCount < 1 {
		return bad("channel_count must be >= 1, got %d", s.ChannelCount)
	}
	if math.IsNaN(s.NominalRate) || math.IsInf(s.NominalRate, 0) || s.NominalRate < 0 {
		return bad("nominal_rate must be a finite value >= 0, got %v", s.NominalRate)
	}

	switch s.Kind {
	case model.Continuous:
		if s.NominalRate == 0 {
			return bad("continuous stream requires nominal_rate > 0")
		}
		if !(s.Amplitude > 0) {
			return bad("continuous stream requires amplitude > 0, got %v", s.Amplitude)
		}
		if s.SampleFormat() == model.FormatString {
			return bad("continuous stream cannot use string format")
		}
	case model.Event:
		if s.NominalRate != 0 {
			return bad("event stream requires nominal_rate 0, got %v", s.NominalRate)
		}
		if s.ChannelCount != 1 {
			return bad("event stream must have exactly one channel, got %d", s.ChannelCount)
		}
		if len(s.Vocabulary) == 0 {
			return bad("event stream requires a non-empty vocabulary")
		}
		if s.Interval.Min < 0 || s.Interval.Min > s.Interval.Max {
			return bad("invalid interval bounds [%v, %v] ms", s.Interval.Min, s.Interval.Max)
		}
	default:
		return bad("unknown kind %q", s.Kind)
	}
	return nil
}

// Lookup returns the spec with the given name.
func (c Catalog) Lookup(name string) (model.StreamSpec, bool) {
	for _, s := range c {
		if s.Name == name {
			return s, true
		}
	}
	return model.StreamSpec{}, false
}

// Names returns stream names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name
	}
	return names
}
