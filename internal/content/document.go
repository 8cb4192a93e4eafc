package content

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
)

// Fields names the two attributes a record must carry.
type Fields struct {
	SubjectElement     string
	SubjectAttribute   string
	TimestampElement   string
	TimestampAttribute string
}

// DefaultFields returns Patient/@PatientCode and Event/@EventDate.
func DefaultFields() Fields {
	return Fields{
		SubjectElement:     "Patient",
		SubjectAttribute:   "PatientCode",
		TimestampElement:   "Event",
		TimestampAttribute: "EventDate",
	}
}

// SubjectPath returns the subject field as "Element/@Attribute".
func (f Fields) SubjectPath() string {
	return f.SubjectElement + "/@" + f.SubjectAttribute
}

// TimestampPath returns the timestamp field as "Element/@Attribute".
func (f Fields) TimestampPath() string {
	return f.TimestampElement + "/@" + f.TimestampAttribute
}

// IsStructured reports whether name looks like a record file (.xml, any case).
func IsStructured(name string) bool {
	return cases.Fold().String(filepath.Ext(name)) == ".xml"
}

// Document is a parsed record. It keeps the original bytes.
type Document struct {
	raw       []byte
	fields    Fields
	subject   string
	timestamp string

	// [valueStart, valueEnd) is the raw timestamp value in raw, quotes excluded.
	valueStart int
	valueEnd   int
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse decodes data and locates the subject and timestamp attributes.
//
// The whole document must be well-formed with a single root element. Only the
// first element with each configured name is consulted, and its attribute must
// be present, unprefixed and non-empty. Every failure is a *ContentError.
func Parse(data []byte, f Fields) (*Document, error) {
	body := bytes.TrimPrefix(data, utf8BOM)
	base := len(data) - len(body)

	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charsetReader

	doc := &Document{raw: data, fields: f}

	var (
		stack         []xml.Name
		roots         int
		seenSubject   bool
		seenTimestamp bool
	)

	for {
		start := dec.InputOffset()
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ContentError{Kind: ErrMalformed, Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				roots++
				if roots > 1 {
					return nil, malformed("multiple root elements")
				}
			}
			stack = append(stack, t.Name)

			if !seenSubject && isNamed(t.Name, f.SubjectElement) {
				seenSubject = true
				doc.subject, _ = attrValue(t, f.SubjectAttribute)
			}

			if !seenTimestamp && isNamed(t.Name, f.TimestampElement) {
				seenTimestamp = true
				if v, ok := attrValue(t, f.TimestampAttribute); ok && v != "" {
					tag := body[start:dec.InputOffset()]
					vs, ve, found := attrValueSpan(tag, f.TimestampAttribute)
					if !found {
						return nil, malformed("cannot locate " + f.TimestampPath())
					}
					offset := base + int(start)
					doc.timestamp = v
					doc.valueStart, doc.valueEnd = offset+vs, offset+ve
				}
			}

		case xml.EndElement:
			if len(stack) == 0 || stack[len(stack)-1] != t.Name {
				return nil, malformed(fmt.Sprintf("unexpected end element </%s>", qualified(t.Name)))
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 && len(bytes.TrimSpace(t)) > 0 {
				return nil, malformed("text outside root element")
			}
		}
	}

	if roots == 0 {
		return nil, malformed("no root element")
	}
	if len(stack) > 0 {
		return nil, malformed(fmt.Sprintf("unclosed element <%s>", qualified(stack[len(stack)-1])))
	}
	if doc.subject == "" {
		return nil, &ContentError{Kind: ErrMissingField, Field: f.SubjectPath()}
	}
	if doc.timestamp == "" {
		return nil, &ContentError{Kind: ErrMissingField, Field: f.TimestampPath()}
	}

	return doc, nil
}

// Subject returns the subject id.
func (d *Document) Subject() string { return d.subject }

// Timestamp returns the timestamp attribute value as decoded.
func (d *Document) Timestamp() string { return d.timestamp }

// Disambiguated reports whether the timestamp already has a seconds component.
func (d *Document) Disambiguated() bool {
	return strings.Count(d.timestamp, ":") > 1
}

// Eligible returns a *ContentError with ErrAlreadyDisambiguated when the
// timestamp must not be patched again, and nil otherwise.
func (d *Document) Eligible() error {
	if d.Disambiguated() {
		return &ContentError{
			Kind:  ErrAlreadyDisambiguated,
			Field: d.fields.TimestampPath(),
			Err:   fmt.Errorf("value %q", d.timestamp),
		}
	}
	return nil
}

// WithTimestamp returns a copy of the original bytes with the timestamp
// attribute value replaced by v (escaped). No other byte changes.
func (d *Document) WithTimestamp(v string) []byte {
	var esc bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = xml.EscapeText(&esc, []byte(v))

	out := make([]byte, 0, len(d.raw)-(d.valueEnd-d.valueStart)+esc.Len())
	out = append(out, d.raw[:d.valueStart]...)
	out = append(out, esc.Bytes()...)
	out = append(out, d.raw[d.valueEnd:]...)
	return out
}

func malformed(msg string) *ContentError {
	return &ContentError{Kind: ErrMalformed, Err: errors.New(msg)}
}

// isNamed matches an unprefixed element name.
func isNamed(n xml.Name, local string) bool {
	return n.Space == "" && n.Local == local
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// attrValue returns the first unprefixed attribute called name.
func attrValue(t xml.StartElement, name string) (string, bool) {
	for _, a := range t.Attr {
		if isNamed(a.Name, name) {
			return a.Value, true
		}
	}
	return "", false
}

// attrValueSpan scans a raw start tag (as accepted by the strict decoder) and
// returns the byte range of the first attribute called name, quotes excluded.
func attrValueSpan(tag []byte, name string) (start, end int, ok bool) {
	i := 1
	for i < len(tag) && !isSpace(tag[i]) && tag[i] != '>' && tag[i] != '/' {
		i++
	}

	for i < len(tag) {
		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || tag[i] == '>' || tag[i] == '/' {
			return 0, 0, false
		}

		ns := i
		for i < len(tag) && tag[i] != '=' && !isSpace(tag[i]) {
			i++
		}
		attr := string(tag[ns:i])

		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || tag[i] != '=' {
			return 0, 0, false
		}
		i++
		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || (tag[i] != '"' && tag[i] != '\'') {
			return 0, 0, false
		}

		quote := tag[i]
		vs := i + 1
		rel := bytes.IndexByte(tag[vs:], quote)
		if rel < 0 {
			return 0, 0, false
		}
		ve := vs + rel

		if attr == name {
			return vs, ve, true
		}
		i = ve + 1
	}
	return 0, 0, false
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// charsetReader accepts declared encodings that are byte-compatible with UTF-8.
// Anything else would break the byte offsets used by WithTimestamp.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch cases.Fold().String(label) {
	case "us-ascii", "ascii", "utf8":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", label)
}
