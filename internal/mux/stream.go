// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mux

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"math"

	"github.com/ManuGH/canvasrec/internal/frame"
	"github.com/icza/mjpeg"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 90

// Stream is an open video container accepting frames of a fixed size.
type Stream interface {
	WriteFrame(f *frame.Frame) error
	// Close finalizes the container (index, headers). It must be called
	// exactly once, also after write errors.
	Close() error
}

// OpenFunc creates a stream at path for frames of width×height at fps.
type OpenFunc func(path string, width, height, fps int) (Stream, error)

// OpenMJPEG returns an OpenFunc writing Motion-JPEG in an AVI container.
func OpenMJPEG(quality int) OpenFunc {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return func(path string, width, height, fps int) (Stream, error) {
		if width > math.MaxInt32 || height > math.MaxInt32 || fps > math.MaxInt32 {
			return nil, fmt.Errorf("stream parameters out of range: %dx%d@%d", width, height, fps)
		}
		aw, err := mjpeg.New(path, int32(width), int32(height), int32(fps)) // #nosec G115 -- bounds checked above
		if err != nil {
			return nil, err
		}
		return &mjpegStream{aw: aw, opts: &jpeg.Options{Quality: quality}}, nil
	}
}

type mjpegStream struct {
	aw   mjpeg.AviWriter
	opts *jpeg.Options
	buf  bytes.Buffer
}

func (s *mjpegStream) WriteFrame(f *frame.Frame) error {
	s.buf.Reset()
	if err := jpeg.Encode(&s.buf, f.RGBA(), s.opts); err != nil {
		return fmt.Errorf("encode frame %d: %w", f.Seq, err)
	}
	if err := s.aw.AddFrame(s.buf.Bytes()); err != nil {
		return fmt.Errorf("append frame %d: %w", f.Seq, err)
	}
	return nil
}

func (s *mjpegStream) Close() error {
	return s.aw.Close()
}
