package sse

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

// Event is a single server-sent event frame.
//
// Comment lines are surfaced as their own events (with Comment set and the
// raw line, colon included, on Data) so keep-alives can be observed.
type Event struct {
	ID      string
	Type    string
	Data    string
	Comment bool
}

// Decoder parses server-sent events from a stream.
type Decoder struct {
	reader *bufio.Reader

	// Frame being built, comments may be interleaved with its lines.
	ev      Event
	data    strings.Builder
	hasData bool
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	if r == nil {
		r = strings.NewReader("")
	}
	return &Decoder{reader: bufio.NewReader(r)}
}

// Next returns the next event of the stream.
//
// io.EOF is returned when the stream ends, a trailing frame that was not
// terminated by a blank line is discarded.
func (d *Decoder) Next(ctx context.Context) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		line, err := d.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if !d.hasData {
				// Blank line without data resets the frame.
				d.ev = Event{}
				continue
			}
			ev := d.ev
			ev.Data = d.data.String()
			d.reset()
			return ev, nil
		}

		if strings.HasPrefix(line, ":") {
			return Event{Comment: true, Data: line}, nil
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			if d.hasData {
				d.data.WriteByte('\n')
			}
			d.data.WriteString(value)
			d.hasData = true
		case "event":
			d.ev.Type = value
		case "id":
			d.ev.ID = value
		}
		// Unknown fields (including retry) are ignored.
	}
}

func (d *Decoder) reset() {
	d.ev = Event{}
	d.data.Reset()
	d.hasData = false
}
