// Package bundle reads and writes compressed streams of revision chunks,
// the unit used to carry translated revisions across the bridge in bulk.
//
// Layout: a 4-byte magic, one version byte selecting the chunk layout,
// then a zstd stream of length-prefixed chunks. A zero-length chunk
// delimits a section (changesets, then manifests, then files, by
// convention of the producer).
package bundle

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/odvcencio/hgbridge/pkg/hg"
)

var magic = [4]byte{'H', 'G', 'B', '1'}

// Writer emits a bundle stream.
type Writer struct {
	version hg.ChunkVersion
	enc     *zstd.Encoder
}

// NewWriter writes the bundle header to out and returns a Writer whose
// chunks use the given layout version.
func NewWriter(out io.Writer, version hg.ChunkVersion) (*Writer, error) {
	if version != hg.ChunkV1 && version != hg.ChunkV2 {
		return nil, fmt.Errorf("bundle: unsupported chunk version %d", int(version))
	}
	if _, err := out.Write(magic[:]); err != nil {
		return nil, fmt.Errorf("bundle: write magic: %w", err)
	}
	if _, err := out.Write([]byte{byte(version)}); err != nil {
		return nil, fmt.Errorf("bundle: write version: %w", err)
	}
	enc, err := zstd.NewWriter(out)
	if err != nil {
		return nil, fmt.Errorf("bundle: init zstd: %w", err)
	}
	return &Writer{version: version, enc: enc}, nil
}

// WriteChunk appends one revision chunk.
func (w *Writer) WriteChunk(c *hg.RawChunk) error {
	if c.Version != w.version {
		return fmt.Errorf("bundle: chunk version %d in v%d bundle", int(c.Version), int(w.version))
	}
	b, err := c.Marshal()
	if err != nil {
		return err
	}
	if _, err := w.enc.Write(b); err != nil {
		return fmt.Errorf("bundle: write chunk: %w", err)
	}
	return nil
}

// EndSection writes the zero-length section delimiter.
func (w *Writer) EndSection() error {
	if _, err := w.enc.Write([]byte{0, 0, 0, 0}); err != nil {
		return fmt.Errorf("bundle: end section: %w", err)
	}
	return nil
}

// Close flushes and terminates the compressed stream.
func (w *Writer) Close() error {
	return w.enc.Close()
}

// Reader consumes a bundle stream.
type Reader struct {
	version hg.ChunkVersion
	dec     *zstd.Decoder
}

// NewReader validates the bundle header and prepares chunk decoding.
func NewReader(in io.Reader) (*Reader, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(in, hdr[:]); err != nil {
		return nil, fmt.Errorf("bundle: read header: %w", err)
	}
	if [4]byte(hdr[:4]) != magic {
		return nil, fmt.Errorf("bundle: bad magic %q", hdr[:4])
	}
	version := hg.ChunkVersion(hdr[4])
	if version != hg.ChunkV1 && version != hg.ChunkV2 {
		return nil, fmt.Errorf("bundle: unsupported chunk version %d", int(version))
	}
	dec, err := zstd.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("bundle: init zstd: %w", err)
	}
	return &Reader{version: version, dec: dec}, nil
}

// Version reports the chunk layout carried by the bundle.
func (r *Reader) Version() hg.ChunkVersion { return r.version }

// ReadChunk returns the next chunk, (nil, nil) at a section delimiter,
// and io.EOF at the end of the stream.
func (r *Reader) ReadChunk() (*hg.RawChunk, error) {
	return hg.ReadChunk(r.dec, r.version)
}

// Close releases the decoder.
func (r *Reader) Close() {
	r.dec.Close()
}
