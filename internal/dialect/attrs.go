package dialect

import (
	"encoding/xml"

	"loom/internal/timeline"
)

// AttrName renders an attribute name with its namespace prefix. For
// undeclared prefixes encoding/xml surfaces the prefix in Space, so the
// two parts have to be rejoined to recover what the document said.
func AttrName(attr xml.Attr) string {
	if attr.Name.Space != "" {
		return attr.Name.Space + ":" + attr.Name.Local
	}
	return attr.Name.Local
}

// NormalizeAttrs rewrites attribute names into prefix-joined local form
// so that re-emission does not depend on encoder namespace handling.
func NormalizeAttrs(attrs []xml.Attr) []xml.Attr {
	for i, attr := range attrs {
		if attr.Name.Space != "" {
			attrs[i].Name = xml.Name{Local: AttrName(attr)}
		}
	}
	return attrs
}

// AttrsToRaw records unmodeled attributes of a container element in model
// form. Element names the construct so the owning adapter can find them
// again on serialize.
func AttrsToRaw(element string, attrs []xml.Attr) []timeline.RawAttr {
	if len(attrs) == 0 {
		return nil
	}
	raw := make([]timeline.RawAttr, 0, len(attrs))
	for _, attr := range attrs {
		raw = append(raw, timeline.RawAttr{Element: element, Name: AttrName(attr), Value: attr.Value})
	}
	return raw
}

// RawAttrsFor returns the attributes recorded for a container element,
// ready to attach during serialization.
func RawAttrsFor(element string, raw []timeline.RawAttr) []xml.Attr {
	var attrs []xml.Attr
	for _, r := range raw {
		if r.Element != element {
			continue
		}
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: r.Name}, Value: r.Value})
	}
	return attrs
}
