package xdf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/and161185/streamcheck/model"
)

// samplesPerChunk bounds the size of the Samples chunks written by Encode.
const samplesPerChunk = 512

// Writer emits XDF chunks. Stream headers must be written before the stream's samples.
type Writer struct {
	w       io.Writer
	streams map[uint32]model.StreamInfo
}

// NewWriter writes the magic to w and returns a writer for the chunks that follow.
func NewWriter(w io.Writer) (*Writer, error) {
	if _, err := io.WriteString(w, Magic); err != nil {
		return nil, err
	}
	return &Writer{w: w, streams: make(map[uint32]model.StreamInfo)}, nil
}

func (w *Writer) writeChunk(tag uint16, content []byte) error {
	var hdr bytes.Buffer
	writeVarLen(&hdr, uint64(len(content)+2))
	_ = binary.Write(&hdr, binary.LittleEndian, tag)
	if _, err := w.w.Write(hdr.Bytes()); err != nil {
		return err
	}
	_, err := w.w.Write(content)
	return err
}

func withStreamID(id uint32, rest []byte) []byte {
	out := make([]byte, 4, 4+len(rest))
	binary.LittleEndian.PutUint32(out, id)
	return append(out, rest...)
}

// WriteFileHeader writes the FileHeader chunk.
func (w *Writer) WriteFileHeader(h model.Header) error {
	if h.Version == "" {
		h.Version = Version
	}
	raw, err := marshalXML(fileHeaderXML{Version: h.Version, Datetime: h.Datetime, SessionID: h.SessionID})
	if err != nil {
		return err
	}
	return w.writeChunk(TagFileHeader, raw)
}

// WriteStreamHeader declares stream id.
func (w *Writer) WriteStreamHeader(id uint32, info model.StreamInfo) error {
	if _, err := valueSize(info.Format); err != nil {
		return err
	}
	if info.ChannelCount < 1 {
		return fmt.Errorf("xdf: stream %s: channel_count %d", info.Name, info.ChannelCount)
	}
	raw, err := marshalXML(streamHeaderXML{
		Name:          info.Name,
		Type:          info.Type,
		ChannelCount:  info.ChannelCount,
		NominalSrate:  info.NominalRate,
		ChannelFormat: info.Format,
		SourceID:      info.SourceID,
	})
	if err != nil {
		return err
	}
	w.streams[id] = info
	return w.writeChunk(TagStreamHeader, withStreamID(id, raw))
}

// WriteSamples writes one Samples chunk with explicit timestamps.
func (w *Writer) WriteSamples(id uint32, samples []model.Sample) error {
	info, ok := w.streams[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStream, id)
	}
	size, _ := valueSize(info.Format)

	var buf bytes.Buffer
	writeVarLen(&buf, uint64(len(samples)))
	for i, s := range samples {
		if len(s.Values) != info.ChannelCount {
			return fmt.Errorf("xdf: stream %s sample %d has %d values, want %d", info.Name, i, len(s.Values), info.ChannelCount)
		}
		buf.WriteByte(8)
		_ = binary.Write(&buf, binary.LittleEndian, s.Timestamp)
		for _, v := range s.Values {
			if err := encodeValue(&buf, info.Format, size, v); err != nil {
				return fmt.Errorf("xdf: stream %s sample %d: %w", info.Name, i, err)
			}
		}
	}
	return w.writeChunk(TagSamples, withStreamID(id, buf.Bytes()))
}

// WriteClockOffset records that the stream's clock was offset seconds away from
// the recorder's at collectionTime.
func (w *Writer) WriteClockOffset(id uint32, collectionTime, offset float64) error {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, collectionTime)
	_ = binary.Write(&buf, binary.LittleEndian, offset)
	return w.writeChunk(TagClockOffset, withStreamID(id, buf.Bytes()))
}

// WriteBoundary writes a Boundary chunk.
func (w *Writer) WriteBoundary() error {
	return w.writeChunk(TagBoundary, boundary[:])
}

// WriteStreamFooter summarises the samples written for id.
func (w *Writer) WriteStreamFooter(id uint32, samples []model.Sample) error {
	f := streamFooterXML{SampleCount: len(samples)}
	if len(samples) > 0 {
		f.FirstTimestamp = samples[0].Timestamp
		f.LastTimestamp = samples[len(samples)-1].Timestamp
	}
	raw, err := marshalXML(f)
	if err != nil {
		return err
	}
	return w.writeChunk(TagStreamFooter, withStreamID(id, raw))
}

// Encode writes rec as a complete XDF file. Stream ids are assigned from 1 in
// recording order.
func Encode(out io.Writer, rec model.Recording) error {
	w, err := NewWriter(out)
	if err != nil {
		return err
	}
	if err := w.WriteFileHeader(rec.Header); err != nil {
		return err
	}
	for i, rs := range rec.Streams {
		if err := w.WriteStreamHeader(uint32(i+1), rs.Info); err != nil {
			return err
		}
	}
	if err := w.WriteBoundary(); err != nil {
		return err
	}
	for i, rs := range rec.Streams {
		for start := 0; start < len(rs.Samples); start += samplesPerChunk {
			end := min(start+samplesPerChunk, len(rs.Samples))
			if err := w.WriteSamples(uint32(i+1), rs.Samples[start:end]); err != nil {
				return err
			}
		}
	}
	for i, rs := range rec.Streams {
		if err := w.WriteStreamFooter(uint32(i+1), rs.Samples); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile encodes rec to path, replacing any existing file.
func WriteFile(path string, rec model.Recording) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := Encode(bw, rec); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeValue(buf *bytes.Buffer, format string, size int, v any) error {
	if size == 0 {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		writeVarLen(buf, uint64(len(s)))
		buf.WriteString(s)
		return nil
	}

	f, err := toFloat(v)
	if err != nil {
		return err
	}
	switch format {
	case model.FormatFloat32:
		return binary.Write(buf, binary.LittleEndian, math.Float32bits(float32(f)))
	case model.FormatDouble:
		return binary.Write(buf, binary.LittleEndian, math.Float64bits(f))
	case model.FormatInt8:
		return binary.Write(buf, binary.LittleEndian, int8(f))
	case model.FormatInt16:
		return binary.Write(buf, binary.LittleEndian, int16(f))
	case model.FormatInt32:
		return binary.Write(buf, binary.LittleEndian, int32(f))
	default:
		return binary.Write(buf, binary.LittleEndian, int64(f))
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
