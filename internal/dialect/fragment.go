package dialect

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"loom/internal/timeline"
)

// Fragment is an XML element the adapter does not model, captured verbatim
// (tag, attributes, and subtree) so it can be re-emitted on serialize.
type Fragment struct {
	XML string
}

// UnmarshalXML re-renders the element, start tag included, into f.XML.
func (f *Fragment) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
		if err := enc.EncodeToken(tok); err != nil {
			return err
		}
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	f.XML = buf.String()
	return nil
}

// MarshalXML replays the captured tokens through the encoder. The start
// element supplied by the caller is discarded; the fragment carries its own.
func (f Fragment) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	if strings.TrimSpace(f.XML) == "" {
		return nil
	}
	d := xml.NewDecoder(strings.NewReader(f.XML))
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := e.EncodeToken(tok); err != nil {
			return err
		}
	}
}

// FragmentsToRaw converts captured fragments to the model representation.
func FragmentsToRaw(fragments []Fragment) []timeline.RawElement {
	if len(fragments) == 0 {
		return nil
	}
	out := make([]timeline.RawElement, 0, len(fragments))
	for _, f := range fragments {
		out = append(out, timeline.RawElement{XML: f.XML})
	}
	return out
}

// RawToFragments converts model raw elements back to fragments.
func RawToFragments(raw []timeline.RawElement) []Fragment {
	if len(raw) == 0 {
		return nil
	}
	out := make([]Fragment, 0, len(raw))
	for _, r := range raw {
		out = append(out, Fragment{XML: r.XML})
	}
	return out
}
