// SPDX-License-Identifier: MIT
/*
Package decode loads audio files into planar float64 buffers.

Decoders are looked up by format name in a Registry. The default registry
knows WAV, MP3, Ogg Vorbis and FLAC and maps the usual file extensions onto
them. Every decoder reads the whole stream; samples are normalised to
[-1, 1] and channels are kept as the file stores them (go-mp3 always yields
stereo).
*/
package decode

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"featidx/internal/buffer"
	applog "featidx/internal/log"
)

// Decoder reads a complete stream and returns its samples and sample rate.
type Decoder interface {
	Decode(r io.ReadSeeker) (*buffer.Buffer, int, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(r io.ReadSeeker) (*buffer.Buffer, int, error)

// Decode calls f(r).
func (f DecoderFunc) Decode(r io.ReadSeeker) (*buffer.Buffer, int, error) {
	return f(r)
}

// Registry maps format names and file extensions to decoders.
type Registry struct {
	mu         sync.RWMutex
	codecs     map[string]Decoder
	extensions map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		codecs:     make(map[string]Decoder),
		extensions: make(map[string]string),
	}
}

// Register adds d under format and associates each extension (with or
// without the leading dot) with it. A later registration replaces an
// earlier one.
func (r *Registry) Register(format string, d Decoder, extensions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	format = strings.ToLower(format)
	r.codecs[format] = d
	for _, ext := range extensions {
		r.extensions[normalizeExt(ext)] = format
	}
}

// Get returns the decoder registered under format.
func (r *Registry) Get(format string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.codecs[strings.ToLower(format)]
	return d, ok
}

// FormatFor returns the format registered for the extension of path.
func (r *Registry) FormatFor(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	format, ok := r.extensions[normalizeExt(filepath.Ext(path))]
	return format, ok
}

// Formats returns the registered format names in sorted order.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]string, 0, len(r.codecs))
	for f := range r.codecs {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// Decode decodes r as format. Streams that are not seekable are read into
// memory first.
func (r *Registry) Decode(format string, rd io.Reader) (*buffer.Buffer, int, error) {
	d, ok := r.Get(format)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	rs, ok := rd.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(rd)
		if err != nil {
			return nil, 0, fmt.Errorf("decode: reading %s stream: %w", format, err)
		}
		rs = bytes.NewReader(data)
	}

	buf, rate, err := d.Decode(rs)
	if err != nil {
		return nil, 0, fmt.Errorf("decode: %s: %w", format, err)
	}
	if buf == nil || buf.NumSamples() == 0 {
		return nil, 0, fmt.Errorf("%w (%s)", ErrEmptyStream, format)
	}
	if rate <= 0 {
		return nil, 0, fmt.Errorf("decode: %s: invalid sample rate %d", format, rate)
	}
	return buf, rate, nil
}

// Load opens path and decodes it with the decoder for its extension.
func (r *Registry) Load(path string) (*buffer.Buffer, int, error) {
	format, ok := r.FormatFor(path)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("decode: %w", err)
	}
	defer f.Close()

	buf, rate, err := r.Decode(format, f)
	if err != nil {
		return nil, 0, err
	}
	applog.Infof("decode: loaded %s (%s, %d channels, %d samples, %d Hz)",
		filepath.Base(path), format, buf.NumChannels(), buf.NumSamples(), rate)
	return buf, rate, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Default is the registry with every built-in format.
var Default = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("wav", DecoderFunc(decodeWAV), "wav", "wave")
	r.Register("mp3", DecoderFunc(decodeMP3), "mp3")
	r.Register("ogg", DecoderFunc(decodeOgg), "ogg", "oga")
	r.Register("flac", DecoderFunc(decodeFLAC), "flac")
	return r
}

// Load decodes path with the default registry.
func Load(path string) (*buffer.Buffer, int, error) {
	return Default.Load(path)
}

// Decode decodes r as format with the default registry.
func Decode(format string, r io.Reader) (*buffer.Buffer, int, error) {
	return Default.Decode(format, r)
}
