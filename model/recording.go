package model

// Header is the file-level metadata of a recording.
type Header struct {
	Version   string `json:"version"`
	Datetime  string `json:"datetime,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Recording is a loaded recording: its header and every stream in file order.
type Recording struct {
	Header  Header           `json:"header"`
	Streams []RecordedStream `json:"streams"`
}
