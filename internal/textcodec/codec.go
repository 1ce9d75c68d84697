// Package textcodec encodes extracted page text as a fixed-width UTF-32LE stream
// delimited by a 4-byte marker.
//
// A document with pages p0..pn-1 is encoded as
//
//	M p0 M p1 M ... M pn-1 M
//
// where M is the marker. A document without pages is the single marker M. The
// marker value 0xFFFFFFFF is not a valid code point, so it never occurs at a
// 4-byte aligned offset inside page content.
package textcodec

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Width is the byte width of one encoded code point.
const Width = 4

// Marker delimits document start, page boundaries and document end.
var Marker = []byte{0xFF, 0xFF, 0xFF, 0xFF}

var codec encoding.Encoding = utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)

// EncodePage converts UTF-8 page text to UTF-32LE. Invalid UTF-8 sequences are
// replaced by U+FFFD.
func EncodePage(text string) ([]byte, error) {
	b, err := codec.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode page text: %w", err)
	}
	return b, nil
}

// DecodePage converts a UTF-32LE page back to UTF-8.
func DecodePage(b []byte) (string, error) {
	if len(b)%Width != 0 {
		return "", fmt.Errorf("decode page text: length %d is not a multiple of %d", len(b), Width)
	}
	out, err := codec.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode page text: %w", err)
	}
	return string(out), nil
}

// Join builds the document stream from encoded pages.
func Join(pages [][]byte) []byte {
	size := Width
	for _, p := range pages {
		size += len(p) + Width
	}

	var buf bytes.Buffer
	buf.Grow(size)
	buf.Write(Marker)
	for _, p := range pages {
		buf.Write(p)
		buf.Write(Marker)
	}
	return buf.Bytes()
}

// Split slices a document stream back into its encoded pages. Join(Split(doc))
// reproduces doc byte for byte.
func Split(doc []byte) ([][]byte, error) {
	if len(doc) < Width || len(doc)%Width != 0 {
		return nil, fmt.Errorf("split text: invalid stream length %d", len(doc))
	}
	if !bytes.Equal(doc[:Width], Marker) {
		return nil, fmt.Errorf("split text: missing document start marker")
	}
	if !bytes.Equal(doc[len(doc)-Width:], Marker) {
		return nil, fmt.Errorf("split text: missing document end marker")
	}

	pages := make([][]byte, 0)
	start := Width
	for off := Width; off < len(doc); off += Width {
		if bytes.Equal(doc[off:off+Width], Marker) {
			pages = append(pages, doc[start:off])
			start = off + Width
		}
	}
	return pages, nil
}

// PageAt returns the page index containing byte offset off of a document
// stream, or -1 when off falls on a marker or outside the stream.
func PageAt(doc []byte, off int64) int {
	if off < 0 || off >= int64(len(doc)) {
		return -1
	}
	aligned := off - off%Width
	page := -1
	for pos := int64(0); pos+Width <= int64(len(doc)); pos += Width {
		isMarker := bytes.Equal(doc[pos:pos+Width], Marker)
		if pos == aligned {
			if isMarker {
				return -1
			}
			return page
		}
		if isMarker {
			page++
		}
	}
	return -1
}
