package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Recording frame constants.
//
// A recording is a sequence of frames, each a 4-byte big-endian payload length
// followed by a msgpack-encoded TokenFrame. Recordings preserve every
// observation, repeats included, so a capture can be replayed verbatim.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
	// MaxFramePayload bounds a single frame payload.
	MaxFramePayload = MaxTokenSize + 256
)

// TokenFrameType is the type discriminant for token frames.
const TokenFrameType = "token"

// TokenFrame is one recorded observation.
type TokenFrame struct {
	Type string `msgpack:"type"`
	// Token is the raw decoded string, exactly as the capture produced it.
	Token string `msgpack:"token"`
	// ObservedAt is the capture time in Unix milliseconds.
	ObservedAt int64 `msgpack:"observed_at"`
}

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a payload above MaxFramePayload.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error or wrong frame type.
	FrameErrorDecode
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the recording cannot be read past this error.
// Partial and oversized frames desynchronize the stream; a bad payload does not.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if err is a fatal *FrameError.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameEncoder writes token frames to a stream.
type FrameEncoder struct {
	w   io.Writer
	now func() time.Time
}

// NewFrameEncoder creates an encoder writing to w.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{w: w, now: time.Now}
}

// WriteToken records token observed now.
func (e *FrameEncoder) WriteToken(token string) error {
	return e.WriteFrame(&TokenFrame{
		Type:       TokenFrameType,
		Token:      token,
		ObservedAt: e.now().UnixMilli(),
	})
}

// WriteFrame writes one length-prefixed frame.
func (e *FrameEncoder) WriteFrame(f *TokenFrame) error {
	payload, err := msgpack.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode token frame: %w", err)
	}
	if len(payload) > MaxFramePayload {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxFramePayload),
		}
	}

	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	_, err = e.w.Write(buf)
	return err
}

// FrameDecoder reads token frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads and decodes a single frame.
//
// Errors:
//   - io.EOF: stream ended cleanly between frames
//   - *FrameError: see FrameErrorKind; check IsFatal before continuing
func (d *FrameDecoder) ReadFrame() (*TokenFrame, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxFramePayload {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxFramePayload),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	var frame TokenFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode token frame",
			Err:  err,
		}
	}
	if frame.Type != TokenFrameType {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unexpected frame type %q", frame.Type),
		}
	}
	return &frame, nil
}

// RecordingSource replays a recording as a Source.
// Non-fatal frame errors are skipped; fatal ones end the stream with the error.
type RecordingSource struct {
	dec     *FrameDecoder
	skipped int
}

// NewRecordingSource creates a source replaying the recording in r.
func NewRecordingSource(r io.Reader) *RecordingSource {
	return &RecordingSource{dec: NewFrameDecoder(r)}
}

// Next implements Source.
func (s *RecordingSource) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		frame, err := s.dec.ReadFrame()
		if err == nil {
			return frame.Token, nil
		}
		if err == io.EOF || IsFatalFrameError(err) {
			return "", err
		}
		s.skipped++
	}
}

// Skipped returns the number of undecodable frames skipped so far.
func (s *RecordingSource) Skipped() int {
	return s.skipped
}

var _ Source = (*RecordingSource)(nil)
