// Package stream implements the framing used between the relay endpoint and its clients. Every text
// delta produced by a provider travels as one event-stream frame carrying a small JSON object, and the
// stream ends with a single sentinel frame.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/tidwall/gjson"
	"github.com/tmaxmax/go-sse"
)

// DoneSentinel is the payload of the frame that terminates a stream.
const DoneSentinel = "[DONE]"

// ErrMalformedFrame is returned by ParseFrame when a frame payload is neither the sentinel nor valid JSON.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one unit of the relayed stream. A frame either carries a text fragment or, when Done is set,
// marks the end of the stream.
type Frame struct {
	Text string
	Done bool
}

type framePayload struct {
	Text string `json:"text"`
}

// Relay transforms a sequence of provider deltas into a sequence of frames. Empty deltas are dropped and
// a Done frame is appended once the deltas are exhausted. If the deltas yield an error, the error is
// forwarded and the sequence ends without a Done frame.
func Relay(deltas iter.Seq2[string, error]) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for delta, err := range deltas {
			if err != nil {
				yield(Frame{}, err)
				return
			}
			if delta == "" {
				continue
			}
			if !yield(Frame{Text: delta}, nil) {
				return
			}
		}
		yield(Frame{Done: true}, nil)
	}
}

// WriteFrame writes f to w in the event-stream format, as `data: {"text":"..."}` or `data: [DONE]`,
// followed by the blank line that terminates the event.
func WriteFrame(w io.Writer, f Frame) error {
	data := DoneSentinel
	if !f.Done {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(framePayload{Text: f.Text}); err != nil {
			return fmt.Errorf("failed to encode frame: %w", err)
		}
		data = string(bytes.TrimRight(buf.Bytes(), "\n"))
	}

	msg := &sse.Message{}
	msg.AppendData(data)
	if _, err := msg.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Read returns the payloads of the data frames found in r, in arrival order. The iteration ends when r
// is exhausted; a read failure, such as a connection dropped in the middle of the stream, is yielded as
// an error and ends the iteration too.
func Read(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for ev, err := range sse.Read(r, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading stream: %w", err))
				return
			}
			if !yield(ev.Data, nil) {
				return
			}
		}
	}
}

// ParseFrame decodes one frame payload. A payload that is valid JSON but has no string "text" field
// results in an empty, non-Done frame. Invalid JSON results in an error wrapping ErrMalformedFrame.
func ParseFrame(data string) (Frame, error) {
	if data == DoneSentinel {
		return Frame{Done: true}, nil
	}
	if !gjson.Valid(data) {
		return Frame{}, fmt.Errorf("%w: %q", ErrMalformedFrame, data)
	}
	text := gjson.Get(data, "text")
	if text.Type != gjson.String {
		return Frame{}, nil
	}
	return Frame{Text: text.String()}, nil
}
