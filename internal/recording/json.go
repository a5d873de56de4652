package recording

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/model"
)

// JSONLoader reads recordings in the recorder's JSON dump format.
type JSONLoader struct{}

// Load implements Loader.
func (JSONLoader) Load(ctx context.Context, path string) ([]model.RecordedStream, model.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Header{}, &errs.LoadError{Path: path, Err: err}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, model.Header{}, &errs.LoadError{Path: path, Err: err}
	}
	defer f.Close()

	rec, err := ReadJSON(f)
	if err != nil {
		return nil, model.Header{}, &errs.LoadError{Path: path, Err: err}
	}
	return rec.Streams, rec.Header, nil
}

// ReadJSON decodes one recording document.
func ReadJSON(r io.Reader) (model.Recording, error) {
	var rec model.Recording
	if err := json.NewDecoder(bufio.NewReader(r)).Decode(&rec); err != nil {
		return model.Recording{}, fmt.Errorf("decode recording: %w", err)
	}
	return rec, nil
}

// WriteJSON encodes rec as one document.
func WriteJSON(w io.Writer, rec model.Recording) error {
	return json.NewEncoder(w).Encode(rec)
}

// WriteJSONFile writes rec to path, replacing any existing file.
func WriteJSONFile(path string, rec model.Recording) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := WriteJSON(bw, rec); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
