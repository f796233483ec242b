package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
)

// Entry is one file in a published manifest. Field order is part of the wire format.
type Entry struct {
	Cid       string `json:"cid"`
	CreatedAt int64  `json:"created_at"`
	Name      string `json:"name"`
	UpdatedAt int64  `json:"updated_at"`
	URL       string `json:"url"`
}

type Files struct {
	Files []Entry `json:"files"`
}

type Document struct {
	Data Files `json:"data"`
}

func Decode(r io.Reader) (*Document, error) {
	doc := &Document{}
	err := json.NewDecoder(r).Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if doc.Data.Files == nil {
		doc.Data.Files = make([]Entry, 0)
	}
	return doc, nil
}

// Encode writes the document in the layout consumed by the orchestrator:
//
//	{"data": {"files": [{"cid": "...", "created_at": 0, "name": "...", "updated_at": 0, "url": "..."}]}}
//
// Separators are ", " and ": ", and everything outside printable ASCII is
// written as \u escapes, surrogate pairs included. There is no trailing newline.
func (d *Document) Encode(w io.Writer) error {
	buf := bufio.NewWriter(w)

	buf.WriteString(`{"data": {"files": [`)
	for i, entry := range d.Data.Files {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(`{"cid": `)
		writeString(buf, entry.Cid)
		buf.WriteString(`, "created_at": `)
		buf.WriteString(strconv.FormatInt(entry.CreatedAt, 10))
		buf.WriteString(`, "name": `)
		writeString(buf, entry.Name)
		buf.WriteString(`, "updated_at": `)
		buf.WriteString(strconv.FormatInt(entry.UpdatedAt, 10))
		buf.WriteString(`, "url": `)
		writeString(buf, entry.URL)
		buf.WriteString("}")
	}
	buf.WriteString("]}}")

	return buf.Flush()
}

func writeString(buf *bufio.Writer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size

		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r >= ' ' && r <= '~':
			buf.WriteRune(r)
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			writeEscape(buf, r1)
			writeEscape(buf, r2)
		default:
			writeEscape(buf, r)
		}
	}
	buf.WriteByte('"')
}

func writeEscape(buf *bufio.Writer, r rune) {
	fmt.Fprintf(buf, `\u%04x`, r)
}
