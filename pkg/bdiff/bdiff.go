// Package bdiff computes and applies Mercurial-style binary patches.
//
// A patch is a sequence of hunks. Each hunk is a 12-byte header of three
// big-endian uint32s (start, end, length) followed by length replacement
// bytes; applying the hunk replaces old[start:end] with the replacement.
// Hunks are emitted in ascending, non-overlapping order.
package bdiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	difflib "github.com/ianbruene/go-difflib/difflib"
)

// Diff computes the patch transforming old into new. It is a pure
// function; an empty old yields a single whole-content hunk, and equal
// inputs yield an empty patch.
func Diff(old, new []byte) []byte {
	if len(old) == 0 {
		if len(new) == 0 {
			return nil
		}
		var buf bytes.Buffer
		writeHunk(&buf, 0, 0, new)
		return buf.Bytes()
	}
	if bytes.Equal(old, new) {
		return nil
	}

	oldLines := splitLines(old)
	newLines := splitLines(new)

	// Byte offset of each old line, plus the terminating offset.
	offsets := make([]int, len(oldLines)+1)
	for i, line := range oldLines {
		offsets[i+1] = offsets[i] + len(line)
	}

	var buf bytes.Buffer
	matcher := difflib.NewMatcher(oldLines, newLines)
	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		repl := strings.Join(newLines[op.J1:op.J2], "")
		writeHunk(&buf, offsets[op.I1], offsets[op.I2], []byte(repl))
	}
	return buf.Bytes()
}

// Apply reverses Diff, reconstructing the new payload from old and patch.
func Apply(old, patch []byte) ([]byte, error) {
	var out bytes.Buffer
	pos := 0
	for off := 0; off < len(patch); {
		if len(patch)-off < 12 {
			return nil, fmt.Errorf("bdiff: truncated hunk header at offset %d", off)
		}
		start := int(binary.BigEndian.Uint32(patch[off:]))
		end := int(binary.BigEndian.Uint32(patch[off+4:]))
		n := int(binary.BigEndian.Uint32(patch[off+8:]))
		off += 12
		if len(patch)-off < n {
			return nil, fmt.Errorf("bdiff: truncated hunk data at offset %d", off)
		}
		if start < pos || start > end || end > len(old) {
			return nil, fmt.Errorf("bdiff: hunk %d:%d out of range", start, end)
		}
		out.Write(old[pos:start])
		out.Write(patch[off : off+n])
		pos = end
		off += n
	}
	out.Write(old[pos:])
	return out.Bytes(), nil
}

// splitLines splits data into lines that keep their terminators, so that
// joining them reproduces the input exactly. A final unterminated line is
// preserved as-is.
func splitLines(data []byte) []string {
	lines := strings.SplitAfter(string(data), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func writeHunk(buf *bytes.Buffer, start, end int, repl []byte) {
	var hdr [12]byte
	binary.BigEndian.PutUint32(hdr[0:], uint32(start))
	binary.BigEndian.PutUint32(hdr[4:], uint32(end))
	binary.BigEndian.PutUint32(hdr[8:], uint32(len(repl)))
	buf.Write(hdr[:])
	buf.Write(repl)
}
