package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
)

// Payload is an ordered list of named parts serialized as a multipart/form-data
// body with a fresh random boundary per request. Keeping the framing here makes
// it testable without going through the HTTP client.
type Payload struct {
	parts []payloadPart
}

type payloadPart struct {
	field    string
	filename string // empty for plain fields
	data     []byte
}

// AddJSON appends a text part holding v marshaled as JSON.
func (p *Payload) AddJSON(field string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q part: %w", field, err)
	}
	p.parts = append(p.parts, payloadPart{field: field, data: data})
	return nil
}

// AddFile appends a binary part carrying filename.
func (p *Payload) AddFile(field, filename string, data []byte) {
	p.parts = append(p.parts, payloadPart{field: field, filename: filename, data: data})
}

// Encode serializes the parts in insertion order and returns the content type
// (including the generated boundary) plus the wire body.
func (p *Payload) Encode() (contentType string, body []byte, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, part := range p.parts {
		var w io.Writer
		if part.filename == "" {
			w, err = mw.CreateFormField(part.field)
		} else {
			hdr := make(textproto.MIMEHeader)
			hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`,
				part.field, part.filename))
			hdr.Set("Content-Type", "application/octet-stream")
			w, err = mw.CreatePart(hdr)
		}
		if err != nil {
			return "", nil, fmt.Errorf("create part %q: %w", part.field, err)
		}
		if _, err := w.Write(part.data); err != nil {
			return "", nil, fmt.Errorf("write part %q: %w", part.field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", nil, fmt.Errorf("finalize multipart body: %w", err)
	}
	return mw.FormDataContentType(), buf.Bytes(), nil
}
