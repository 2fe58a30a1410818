/*
   magpie - DiscFerret disc image acquisition
   Copyright (c) 2026, the magpie authors

   This file is part of magpie.

   magpie is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   magpie is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with magpie. If not, see <http://www.gnu.org/licenses/>.
*/

/*
	Package image reads and writes acquisition image containers. A container
	starts with a four byte magic, followed by any number of frames. Each frame
	is a fixed header naming the track, head and sector it was captured from,
	and the number of raw sample bytes that follow.
*/
package image

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-restruct/restruct"
)

// container magics
const (
	Magic       = "DFE2"
	MagicLegacy = "DFER"
)

// HeaderLen is the packed size of a frame header.
const HeaderLen = 10

// DefaultMaxFrameBytes is the largest frame payload accepted by a reader,
// large enough for a full acquisition RAM dump.
const DefaultMaxFrameBytes = 1024 * 1024

//
var (
	ErrBadMagic      = errors.New("not an acquisition image")
	ErrTruncated     = errors.New("truncated frame")
	ErrFrameTooLarge = errors.New("frame too large")
)

var encoding = binary.BigEndian

// Header is the packed header in front of each frame's sample data.
type Header struct {
	Track  uint16 `json:"track" yaml:"track"`
	Head   uint16 `json:"head" yaml:"head"`
	Sector uint16 `json:"sector" yaml:"sector"`
	Length uint32 `json:"length" yaml:"length"`
}

//
func (h Header) String() string {
	return fmt.Sprintf("track %d, head %d, sector %d, %d bytes",
		h.Track, h.Head, h.Sector, h.Length)
}

// Frame is one captured track/head/sector.
type Frame struct {
	Header
	Data []byte
}

// Limits constrains memory use when decoding.
type Limits struct {
	MaxFrameBytes uint32
}

//
func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: DefaultMaxFrameBytes}
}

// --- writing -----------------------------------------------------------------

// Writer appends frames to a container.
type Writer struct {
	w      io.Writer
	frames int
	bytes  uint64
}

// NewWriter writes the container magic to w and returns a writer for adding
// frames.
func NewWriter(w io.Writer) (*Writer, error) {
	if _, err := io.WriteString(w, Magic); err != nil {
		return nil, fmt.Errorf("error writing image magic: %w", err)
	}
	return &Writer{w: w}, nil
}

// WriteFrame writes header and data as one frame. The header's length is
// taken from data.
func (w *Writer) WriteFrame(h Header, data []byte) error {

	if uint64(len(data)) > uint64(^uint32(0)) {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	h.Length = uint32(len(data))

	raw, err := restruct.Pack(encoding, &h)
	if err != nil {
		return fmt.Errorf("error packing frame header: %w", err)
	}
	if _, err := w.w.Write(raw); err != nil {
		return fmt.Errorf("error writing frame header: %w", err)
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("error writing frame data: %w", err)
	}

	w.frames++
	w.bytes += uint64(len(data))
	return nil
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() int {
	return w.frames
}

// Bytes returns the number of sample bytes written so far.
func (w *Writer) Bytes() uint64 {
	return w.bytes
}

// File is a container writer backed by a buffered file.
type File struct {
	*Writer
	file *os.File
	buf  *bufio.Writer
}

// Create creates or truncates the container file at path.
func Create(path string) (*File, error) {

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	buf := bufio.NewWriterSize(f, 256*1024)
	w, err := NewWriter(buf)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &File{Writer: w, file: f, buf: buf}, nil
}

// Close flushes all buffered frames and closes the file.
func (f *File) Close() error {
	err := f.buf.Flush()
	if cErr := f.file.Close(); err == nil {
		err = cErr
	}
	return err
}

// --- reading -----------------------------------------------------------------

// Reader iterates over the frames of a container.
type Reader struct {
	r      io.Reader
	limits Limits
	magic  string
}

// NewReader checks the container magic and returns a reader positioned at
// the first frame. A zero frame limit selects the default.
func NewReader(r io.Reader, limits Limits) (*Reader, error) {

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrBadMagic
		}
		return nil, err
	}

	if limits.MaxFrameBytes == 0 {
		limits.MaxFrameBytes = DefaultMaxFrameBytes
	}

	switch m := string(magic); m {
	case Magic, MagicLegacy:
		return &Reader{r: r, limits: limits, magic: m}, nil
	default:
		return nil, fmt.Errorf("%w: magic %q", ErrBadMagic, m)
	}
}

// Magic returns the container magic that was found.
func (r *Reader) Magic() string {
	return r.magic
}

// Next reads the next frame. It returns io.EOF when the container ends
// cleanly after a frame.
func (r *Reader) Next() (Frame, error) {

	var raw [HeaderLen]byte
	if n, err := io.ReadFull(r.r, raw[:]); err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return Frame{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: header has only %d bytes", ErrTruncated, n)
		}
		return Frame{}, err
	}

	var h Header
	if err := restruct.Unpack(raw[:], encoding, &h); err != nil {
		return Frame{}, fmt.Errorf("error unpacking frame header: %w", err)
	}

	if h.Length > r.limits.MaxFrameBytes {
		return Frame{}, fmt.Errorf("%w: %s", ErrFrameTooLarge, h)
	}

	data := make([]byte, h.Length)
	if n, err := io.ReadFull(r.r, data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: %s, got only %d bytes", ErrTruncated, h, n)
		}
		return Frame{}, err
	}

	return Frame{Header: h, Data: data}, nil
}
