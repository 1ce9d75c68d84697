// Package charmeta serializes character records as one JSON object per line.
package charmeta

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

// Encode writes records in the given order, one per line. Records are never
// reordered.
func Encode(records []domain.CharacterRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Decode parses a metadata stream produced by Encode.
func Decode(data []byte) ([]domain.CharacterRecord, error) {
	var out []domain.CharacterRecord
	err := eachLine(data, func(n int, line []byte, _ int64) error {
		var rec domain.CharacterRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("decode line %d: %w", n, err)
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// Lines splits a metadata stream into its raw records together with the byte
// offset at which each starts.
func Lines(data []byte) ([][]byte, []int64, error) {
	var lines [][]byte
	var offsets []int64
	err := eachLine(data, func(_ int, line []byte, off int64) error {
		lines = append(lines, line)
		offsets = append(offsets, off)
		return nil
	})
	return lines, offsets, err
}

func eachLine(data []byte, fn func(n int, line []byte, off int64) error) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var off int64
	n := 0
	for sc.Scan() {
		line := sc.Bytes()
		start := off
		off += int64(len(line)) + 1
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		if err := fn(n, cp, start); err != nil {
			return err
		}
		n++
	}
	return sc.Err()
}
