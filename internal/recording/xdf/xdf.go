// Package xdf reads and writes the subset of the Extensible Data Format used by
// stream recorders: file and stream headers, sample chunks, clock offsets,
// boundaries and stream footers.
//
// A file is the magic "XDF:" followed by chunks. Each chunk is
//
//	[NumLengthBytes:1][Length:1|4|8][Tag:2][Content:Length-2]
//
// with all integers little endian.
package xdf

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/and161185/streamcheck/model"
)

// Magic starts every XDF file.
const Magic = "XDF:"

// Version written to file headers.
const Version = "1.0"

// Chunk tags.
const (
	TagFileHeader   uint16 = 1
	TagStreamHeader uint16 = 2
	TagSamples      uint16 = 3
	TagClockOffset  uint16 = 4
	TagBoundary     uint16 = 5
	TagStreamFooter uint16 = 6
)

// maxChunk caps the length accepted from a chunk header.
const maxChunk = 1 << 30

// boundary is the fixed payload of Boundary chunks.
var boundary = [16]byte{0x43, 0xA5, 0x46, 0xDC, 0xCB, 0xF5, 0x41, 0x0F, 0xB3, 0x0E, 0xD5, 0x46, 0x73, 0x83, 0xCB, 0xE4}

var (
	ErrNotXDF        = errors.New("xdf: missing magic")
	ErrCorrupt       = errors.New("xdf: corrupt chunk")
	ErrUnknownStream = errors.New("xdf: chunk for undeclared stream")
	ErrFormat        = errors.New("xdf: unsupported channel format")
)

type fileHeaderXML struct {
	XMLName   xml.Name `xml:"info"`
	Version   string   `xml:"version"`
	Datetime  string   `xml:"datetime,omitempty"`
	SessionID string   `xml:"session_id,omitempty"`
}

type streamHeaderXML struct {
	XMLName       xml.Name `xml:"info"`
	Name          string   `xml:"name"`
	Type          string   `xml:"type"`
	ChannelCount  int      `xml:"channel_count"`
	NominalSrate  float64  `xml:"nominal_srate"`
	ChannelFormat string   `xml:"channel_format"`
	SourceID      string   `xml:"source_id"`
}

type streamFooterXML struct {
	XMLName        xml.Name `xml:"info"`
	FirstTimestamp float64  `xml:"first_timestamp"`
	LastTimestamp  float64  `xml:"last_timestamp"`
	SampleCount    int      `xml:"sample_count"`
}

func marshalXML(v any) ([]byte, error) {
	raw, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), raw...), nil
}

func (h streamHeaderXML) info() model.StreamInfo {
	return model.StreamInfo{
		Name:         h.Name,
		Type:         h.Type,
		ChannelCount: h.ChannelCount,
		NominalRate:  h.NominalSrate,
		Format:       h.ChannelFormat,
		SourceID:     h.SourceID,
	}
}

// valueSize returns the byte width of one numeric value, or 0 for strings.
func valueSize(format string) (int, error) {
	switch format {
	case model.FormatInt8:
		return 1, nil
	case model.FormatInt16:
		return 2, nil
	case model.FormatFloat32, model.FormatInt32:
		return 4, nil
	case model.FormatDouble, model.FormatInt64:
		return 8, nil
	case model.FormatString:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrFormat, format)
	}
}

func writeVarLen(buf *bytes.Buffer, n uint64) {
	switch {
	case n <= 0xFF:
		buf.WriteByte(1)
		buf.WriteByte(byte(n))
	case n <= 0xFFFFFFFF:
		buf.WriteByte(4)
		_ = binary.Write(buf, binary.LittleEndian, uint32(n))
	default:
		buf.WriteByte(8)
		_ = binary.Write(buf, binary.LittleEndian, n)
	}
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

func readVarLen(r byteReader) (uint64, error) {
	width, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch width {
	case 1:
		b, err := r.ReadByte()
		return uint64(b), err
	case 4:
		var v uint32
		err := binary.Read(r, binary.LittleEndian, &v)
		return uint64(v), err
	case 8:
		var v uint64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	default:
		return 0, fmt.Errorf("%w: length width %d", ErrCorrupt, width)
	}
}
