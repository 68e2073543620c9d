package mlt

import (
	"encoding/xml"

	"loom/internal/dialect"
)

type document struct {
	XMLName   xml.Name           `xml:"mlt"`
	LCNumeric string             `xml:"LC_NUMERIC,attr,omitempty"`
	Version   string             `xml:"version,attr,omitempty"`
	Title     string             `xml:"title,attr,omitempty"`
	Profile   *profile           `xml:"profile"`
	Producers []producer         `xml:"producer"`
	Playlists []playlist         `xml:"playlist"`
	Tractor   *tractor           `xml:"tractor"`
	Extras    []dialect.Fragment `xml:",any"`

	ExtraAttrs []xml.Attr `xml:",any,attr"`
}

type profile struct {
	Description  string `xml:"description,attr,omitempty"`
	Width        int    `xml:"width,attr"`
	Height       int    `xml:"height,attr"`
	Progressive  string `xml:"progressive,attr,omitempty"`
	FrameRateNum int64  `xml:"frame_rate_num,attr"`
	FrameRateDen int64  `xml:"frame_rate_den,attr"`
	Colorspace   string `xml:"colorspace,attr,omitempty"`

	ExtraAttrs []xml.Attr `xml:",any,attr"`
}

type property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type filter struct {
	ID         string     `xml:"id,attr,omitempty"`
	Service    string     `xml:"mlt_service,attr,omitempty"`
	Properties []property `xml:"property"`
}

type producer struct {
	ID         string             `xml:"id,attr"`
	In         string             `xml:"in,attr,omitempty"`
	Out        string             `xml:"out,attr,omitempty"`
	Properties []property         `xml:"property"`
	Filters    []filter           `xml:"filter"`
	Extras     []dialect.Fragment `xml:",any"`

	ExtraAttrs []xml.Attr `xml:",any,attr"`
}

func (p producer) property(name string) string {
	for _, prop := range p.Properties {
		if prop.Name == name {
			return prop.Value
		}
	}
	return ""
}

type entry struct {
	Producer string `xml:"producer,attr"`
	In       string `xml:"in,attr"`
	Out      string `xml:"out,attr"`
}

type blank struct {
	Length string `xml:"length,attr"`
}

// playlistItem is one ordered child of a playlist: an entry or a blank.
type playlistItem struct {
	Entry *entry
	Blank *blank
}

// playlist keeps its entry/blank children in document order, which the
// default struct decoding cannot do, so it carries custom XML codecs.
type playlist struct {
	ID     string
	Video  bool
	Name   string
	Items  []playlistItem
	Extras []dialect.Fragment

	ExtraAttrs []xml.Attr
}

func (p *playlist) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch dialect.AttrName(attr) {
		case "id":
			p.ID = attr.Value
		case "shotcut:video":
			p.Video = attr.Value == "1"
		case "shotcut:name":
			p.Name = attr.Value
		default:
			p.ExtraAttrs = append(p.ExtraAttrs, xml.Attr{Name: xml.Name{Local: dialect.AttrName(attr)}, Value: attr.Value})
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
			case "entry":
				var e entry
				if err := d.DecodeElement(&e, &t); err != nil {
					return err
				}
				p.Items = append(p.Items, playlistItem{Entry: &e})
			case "blank":
				var b blank
				if err := d.DecodeElement(&b, &t); err != nil {
					return err
				}
				p.Items = append(p.Items, playlistItem{Blank: &b})
			default:
				var f dialect.Fragment
				if err := f.UnmarshalXML(d, t); err != nil {
					return err
				}
				p.Extras = append(p.Extras, f)
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (p playlist) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: "playlist"}}
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: p.ID})
	if p.Video {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "shotcut:video"}, Value: "1"})
	}
	if p.Name != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "shotcut:name"}, Value: p.Name})
	}
	start.Attr = append(start.Attr, p.ExtraAttrs...)
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, item := range p.Items {
		switch {
		case item.Entry != nil:
			if err := e.EncodeElement(item.Entry, xml.StartElement{Name: xml.Name{Local: "entry"}}); err != nil {
				return err
			}
		case item.Blank != nil:
			if err := e.EncodeElement(item.Blank, xml.StartElement{Name: xml.Name{Local: "blank"}}); err != nil {
				return err
			}
		}
	}
	for _, extra := range p.Extras {
		if err := extra.MarshalXML(e, xml.StartElement{}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

type tractor struct {
	ID         string             `xml:"id,attr,omitempty"`
	Title      string             `xml:"title,attr,omitempty"`
	In         string             `xml:"in,attr,omitempty"`
	Out        string             `xml:"out,attr,omitempty"`
	Multitrack *multitrack        `xml:"multitrack"`
	Extras     []dialect.Fragment `xml:",any"`

	ExtraAttrs []xml.Attr `xml:",any,attr"`
}

type multitrack struct {
	Tracks []trackRef `xml:"track"`
}

type trackRef struct {
	Producer string `xml:"producer,attr"`
}
