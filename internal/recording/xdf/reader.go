package xdf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/and161185/streamcheck/model"
)

// Option customises Decode.
type Option func(*decoder)

// WithoutClockSync leaves timestamps in the sender's clock even when the file
// carries ClockOffset chunks.
func WithoutClockSync() Option {
	return func(d *decoder) { d.syncClocks = false }
}

type clockOffset struct {
	collection float64
	value      float64
}

type streamState struct {
	info    model.StreamInfo
	size    int
	samples []model.Sample
	offsets []clockOffset
	lastTS  float64
}

type decoder struct {
	syncClocks bool
	header     model.Header
	streams    map[uint32]*streamState
	order      []uint32
}

// ReadFile decodes the XDF file at path.
func ReadFile(path string, opts ...Option) (model.Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Recording{}, err
	}
	defer f.Close()
	return Decode(f, opts...)
}

// Decode reads a whole XDF stream. Streams are returned in header order.
// Samples without a timestamp get the previous one plus 1/rate.
func Decode(r io.Reader, opts ...Option) (model.Recording, error) {
	d := &decoder{syncClocks: true, streams: make(map[uint32]*streamState)}
	for _, opt := range opts {
		opt(d)
	}

	br := bufio.NewReader(r)
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != Magic {
		return model.Recording{}, ErrNotXDF
	}

	for {
		tag, content, err := readChunk(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Recording{}, err
		}
		if err := d.handle(tag, content); err != nil {
			return model.Recording{}, err
		}
	}

	rec := model.Recording{Header: d.header, Streams: make([]model.RecordedStream, 0, len(d.order))}
	for _, id := range d.order {
		st := d.streams[id]
		if d.syncClocks {
			applyClockOffsets(st.samples, st.offsets)
		}
		rec.Streams = append(rec.Streams, model.RecordedStream{Info: st.info, Samples: st.samples})
	}
	return rec, nil
}

// readChunk returns io.EOF only when the stream ends exactly on a chunk boundary.
func readChunk(br *bufio.Reader) (uint16, []byte, error) {
	if _, err := br.Peek(1); err != nil {
		return 0, nil, io.EOF
	}
	n, err := readVarLen(br)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: length: %v", ErrCorrupt, err)
	}
	if n < 2 || n > maxChunk {
		return 0, nil, fmt.Errorf("%w: length %d", ErrCorrupt, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return 0, nil, fmt.Errorf("%w: truncated: %v", ErrCorrupt, err)
	}
	return binary.LittleEndian.Uint16(buf[:2]), buf[2:], nil
}

func splitStreamID(content []byte) (uint32, []byte, error) {
	if len(content) < 4 {
		return 0, nil, fmt.Errorf("%w: missing stream id", ErrCorrupt)
	}
	return binary.LittleEndian.Uint32(content[:4]), content[4:], nil
}

func (d *decoder) handle(tag uint16, content []byte) error {
	switch tag {
	case TagFileHeader:
		var h fileHeaderXML
		if err := xml.Unmarshal(content, &h); err != nil {
			return fmt.Errorf("%w: file header: %v", ErrCorrupt, err)
		}
		d.header = model.Header{Version: h.Version, Datetime: h.Datetime, SessionID: h.SessionID}
		return nil
	case TagStreamHeader:
		return d.streamHeader(content)
	case TagSamples:
		return d.samples(content)
	case TagClockOffset:
		return d.clockOffset(content)
	case TagBoundary, TagStreamFooter:
		return nil
	default:
		// unknown chunks are skipped, as XDF allows
		return nil
	}
}

func (d *decoder) streamHeader(content []byte) error {
	id, raw, err := splitStreamID(content)
	if err != nil {
		return err
	}
	var h streamHeaderXML
	if err := xml.Unmarshal(raw, &h); err != nil {
		return fmt.Errorf("%w: stream header %d: %v", ErrCorrupt, id, err)
	}
	size, err := valueSize(h.ChannelFormat)
	if err != nil {
		return err
	}
	// every value takes at least one byte, so a count beyond the chunk limit cannot be real
	if h.ChannelCount < 1 || h.ChannelCount > maxChunk {
		return fmt.Errorf("%w: stream header %d: channel_count %d", ErrCorrupt, id, h.ChannelCount)
	}
	if _, dup := d.streams[id]; !dup {
		d.order = append(d.order, id)
	}
	d.streams[id] = &streamState{info: h.info(), size: size}
	return nil
}

func (d *decoder) samples(content []byte) error {
	id, raw, err := splitStreamID(content)
	if err != nil {
		return err
	}
	st, ok := d.streams[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStream, id)
	}

	r := bytes.NewReader(raw)
	count, err := readVarLen(r)
	if err != nil {
		return fmt.Errorf("%w: sample count: %v", ErrCorrupt, err)
	}
	if count > uint64(r.Len())/st.minSampleSize() {
		return fmt.Errorf("%w: stream %d: %d samples do not fit in %d bytes", ErrCorrupt, id, count, r.Len())
	}
	for i := uint64(0); i < count; i++ {
		s, err := st.readSample(r)
		if err != nil {
			return fmt.Errorf("%w: stream %d sample %d: %v", ErrCorrupt, id, i, err)
		}
		st.samples = append(st.samples, s)
	}
	return nil
}

// minSampleSize is the smallest encoding of one sample: a deduced timestamp
// and the shortest value per channel.
func (st *streamState) minSampleSize() uint64 {
	return 1 + uint64(st.info.ChannelCount)*uint64(max(st.size, 1))
}

func (st *streamState) readSample(r *bytes.Reader) (model.Sample, error) {
	tsBytes, err := r.ReadByte()
	if err != nil {
		return model.Sample{}, err
	}
	var ts float64
	switch tsBytes {
	case 8:
		if err := binary.Read(r, binary.LittleEndian, &ts); err != nil {
			return model.Sample{}, err
		}
	case 0:
		ts = st.lastTS
		if st.info.NominalRate > 0 {
			ts += 1 / st.info.NominalRate
		}
	default:
		return model.Sample{}, fmt.Errorf("timestamp width %d", tsBytes)
	}
	st.lastTS = ts

	values := make([]any, st.info.ChannelCount)
	for c := range values {
		v, err := st.readValue(r)
		if err != nil {
			return model.Sample{}, err
		}
		values[c] = v
	}
	return model.Sample{Timestamp: ts, Values: values}, nil
}

func (st *streamState) readValue(r *bytes.Reader) (any, error) {
	if st.size == 0 {
		n, err := readVarLen(r)
		if err != nil {
			return nil, err
		}
		if n > uint64(r.Len()) {
			return nil, io.ErrUnexpectedEOF
		}
		b := make([]byte, n)
		_, err = io.ReadFull(r, b)
		return string(b), err
	}

	b := make([]byte, st.size)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	switch st.info.Format {
	case model.FormatFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case model.FormatDouble:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case model.FormatInt8:
		return float64(int8(b[0])), nil
	case model.FormatInt16:
		return float64(int16(binary.LittleEndian.Uint16(b))), nil
	case model.FormatInt32:
		return float64(int32(binary.LittleEndian.Uint32(b))), nil
	default:
		return float64(int64(binary.LittleEndian.Uint64(b))), nil
	}
}

func (d *decoder) clockOffset(content []byte) error {
	id, raw, err := splitStreamID(content)
	if err != nil {
		return err
	}
	st, ok := d.streams[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStream, id)
	}
	if len(raw) != 16 {
		return fmt.Errorf("%w: clock offset of %d bytes", ErrCorrupt, len(raw))
	}
	st.offsets = append(st.offsets, clockOffset{
		collection: math.Float64frombits(binary.LittleEndian.Uint64(raw[:8])),
		value:      math.Float64frombits(binary.LittleEndian.Uint64(raw[8:])),
	})
	return nil
}

// applyClockOffsets shifts timestamps by the least-squares line through the
// measured offsets.
func applyClockOffsets(samples []model.Sample, offsets []clockOffset) {
	if len(offsets) == 0 || len(samples) == 0 {
		return
	}
	intercept, slope := fitLine(offsets)
	for i := range samples {
		ts := samples[i].Timestamp
		samples[i].Timestamp = ts + intercept + slope*ts
	}
}

func fitLine(offsets []clockOffset) (intercept, slope float64) {
	n := float64(len(offsets))
	var sx, sy float64
	for _, o := range offsets {
		sx += o.collection
		sy += o.value
	}
	mx, my := sx/n, sy/n

	var sxx, sxy float64
	for _, o := range offsets {
		dx := o.collection - mx
		sxx += dx * dx
		sxy += dx * (o.value - my)
	}
	if sxx == 0 {
		return my, 0
	}
	slope = sxy / sxx
	return my - slope*mx, slope
}
