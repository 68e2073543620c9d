package fcpxml

import (
	"encoding/xml"

	"loom/internal/dialect"
)

type document struct {
	XMLName   xml.Name           `xml:"fcpxml"`
	Version   string             `xml:"version,attr,omitempty"`
	Resources *resources         `xml:"resources"`
	Library   *library           `xml:"library"`
	Extras    []dialect.Fragment `xml:",any"`

	ExtraAttrs []xml.Attr `xml:",any,attr"`
}

type resources struct {
	Formats []format           `xml:"format"`
	Assets  []asset            `xml:"asset"`
	Extras  []dialect.Fragment `xml:",any"`
}

type format struct {
	ID            string `xml:"id,attr"`
	Name          string `xml:"name,attr,omitempty"`
	FrameDuration string `xml:"frameDuration,attr"`
	Width         int    `xml:"width,attr"`
	Height        int    `xml:"height,attr"`

	ExtraAttrs []xml.Attr `xml:",any,attr"`
}

type asset struct {
	ID       string             `xml:"id,attr"`
	Name     string             `xml:"name,attr,omitempty"`
	Start    string             `xml:"start,attr,omitempty"`
	Duration string             `xml:"duration,attr,omitempty"`
	HasVideo string             `xml:"hasVideo,attr,omitempty"`
	HasAudio string             `xml:"hasAudio,attr,omitempty"`
	MediaRep *mediaRep          `xml:"media-rep"`
	Extras   []dialect.Fragment `xml:",any"`

	ExtraAttrs []xml.Attr `xml:",any,attr"`
}

type mediaRep struct {
	Kind string `xml:"kind,attr,omitempty"`
	Src  string `xml:"src,attr"`
}

type library struct {
	Events []event            `xml:"event"`
	Extras []dialect.Fragment `xml:",any"`

	ExtraAttrs []xml.Attr `xml:",any,attr"`
}

type event struct {
	Name     string             `xml:"name,attr,omitempty"`
	Projects []project          `xml:"project"`
	Extras   []dialect.Fragment `xml:",any"`

	ExtraAttrs []xml.Attr `xml:",any,attr"`
}

type project struct {
	Name      string             `xml:"name,attr,omitempty"`
	Sequences []sequence         `xml:"sequence"`
	Extras    []dialect.Fragment `xml:",any"`

	ExtraAttrs []xml.Attr `xml:",any,attr"`
}

type sequence struct {
	Format   string             `xml:"format,attr"`
	Duration string             `xml:"duration,attr,omitempty"`
	TCStart  string             `xml:"tcStart,attr,omitempty"`
	TCFormat string             `xml:"tcFormat,attr,omitempty"`
	Spines   []spine            `xml:"spine"`
	Extras   []dialect.Fragment `xml:",any"`

	ExtraAttrs []xml.Attr `xml:",any,attr"`
}

type param struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type filterEl struct {
	Name   string  `xml:"name,attr"`
	Params []param `xml:"param"`
}

type gapEl struct {
	Name     string `xml:"name,attr,omitempty"`
	Offset   string `xml:"offset,attr"`
	Duration string `xml:"duration,attr"`
}

// clipEl is a video or audio element. The element name carries the kind,
// which the default struct decoding cannot express, so the spine codec
// drives it explicitly.
type clipEl struct {
	Kind     string // element name: "video" or "audio"
	ID       string
	Name     string
	Ref      string
	Offset   string
	Start    string
	Duration string
	Filters  []filterEl
	Extras   []dialect.Fragment

	ExtraAttrs []xml.Attr
}

func (c *clipEl) unmarshal(d *xml.Decoder, start xml.StartElement) error {
	c.Kind = start.Name.Local
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "id":
			c.ID = attr.Value
		case "name":
			c.Name = attr.Value
		case "ref":
			c.Ref = attr.Value
		case "offset":
			c.Offset = attr.Value
		case "start":
			c.Start = attr.Value
		case "duration":
			c.Duration = attr.Value
		default:
			c.ExtraAttrs = append(c.ExtraAttrs, xml.Attr{Name: xml.Name{Local: dialect.AttrName(attr)}, Value: attr.Value})
		}
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "filter-video", "filter-audio":
				var f filterEl
				if err := d.DecodeElement(&f, &t); err != nil {
					return err
				}
				c.Filters = append(c.Filters, f)
			default:
				var f dialect.Fragment
				if err := f.UnmarshalXML(d, t); err != nil {
					return err
				}
				c.Extras = append(c.Extras, f)
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (c clipEl) marshal(e *xml.Encoder) error {
	start := xml.StartElement{Name: xml.Name{Local: c.Kind}}
	if c.ID != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: c.ID})
	}
	if c.Name != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: c.Name})
	}
	start.Attr = append(start.Attr,
		xml.Attr{Name: xml.Name{Local: "ref"}, Value: c.Ref},
		xml.Attr{Name: xml.Name{Local: "offset"}, Value: c.Offset},
		xml.Attr{Name: xml.Name{Local: "start"}, Value: c.Start},
		xml.Attr{Name: xml.Name{Local: "duration"}, Value: c.Duration},
	)
	start.Attr = append(start.Attr, c.ExtraAttrs...)
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	filterName := "filter-video"
	if c.Kind == "audio" {
		filterName = "filter-audio"
	}
	for _, f := range c.Filters {
		if err := e.EncodeElement(f, xml.StartElement{Name: xml.Name{Local: filterName}}); err != nil {
			return err
		}
	}
	for _, extra := range c.Extras {
		if err := extra.MarshalXML(e, xml.StartElement{}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// spineItem is one ordered child of a spine: a clip or a gap.
type spineItem struct {
	Clip *clipEl
	Gap  *gapEl
}

// spine keeps its clip/gap children in document order, so it carries
// custom XML codecs.
type spine struct {
	Name   string
	Role   string
	Items  []spineItem
	Extras []dialect.Fragment

	ExtraAttrs []xml.Attr
}

func (s *spine) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "name":
			s.Name = attr.Value
		case "role":
			s.Role = attr.Value
		default:
			s.ExtraAttrs = append(s.ExtraAttrs, xml.Attr{Name: xml.Name{Local: dialect.AttrName(attr)}, Value: attr.Value})
		}
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "video", "audio":
				var c clipEl
				if err := c.unmarshal(d, t); err != nil {
					return err
				}
				s.Items = append(s.Items, spineItem{Clip: &c})
			case "gap":
				var g gapEl
				if err := d.DecodeElement(&g, &t); err != nil {
					return err
				}
				s.Items = append(s.Items, spineItem{Gap: &g})
			default:
				var f dialect.Fragment
				if err := f.UnmarshalXML(d, t); err != nil {
					return err
				}
				s.Extras = append(s.Extras, f)
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (s spine) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: "spine"}}
	if s.Name != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: s.Name})
	}
	if s.Role != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "role"}, Value: s.Role})
	}
	start.Attr = append(start.Attr, s.ExtraAttrs...)
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, item := range s.Items {
		switch {
		case item.Clip != nil:
			if err := item.Clip.marshal(e); err != nil {
				return err
			}
		case item.Gap != nil:
			if err := e.EncodeElement(item.Gap, xml.StartElement{Name: xml.Name{Local: "gap"}}); err != nil {
				return err
			}
		}
	}
	for _, extra := range s.Extras {
		if err := extra.MarshalXML(e, xml.StartElement{}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}
