package sse_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/doctrans/internal/sse"
)

func TestDecoderNext(t *testing.T) {
	tests := map[string]struct {
		stream    string
		expEvents []sse.Event
	}{
		"Data frames should be decoded.": {
			stream: "data: {\"a\":1}\n\ndata: {\"b\":2}\n\n",
			expEvents: []sse.Event{
				{Data: `{"a":1}`},
				{Data: `{"b":2}`},
			},
		},

		"Comments should be surfaced as comment events.": {
			stream: ": heartbeat\n\ndata: x\n\n",
			expEvents: []sse.Event{
				{Comment: true, Data: ": heartbeat"},
				{Data: "x"},
			},
		},

		"Comments inside a frame should not break the frame.": {
			stream: "data: a\n: heartbeat\ndata: b\n\n",
			expEvents: []sse.Event{
				{Comment: true, Data: ": heartbeat"},
				{Data: "a\nb"},
			},
		},

		"Multi line data should be joined with new lines.": {
			stream: "data: line 1\ndata: line 2\n\n",
			expEvents: []sse.Event{
				{Data: "line 1\nline 2"},
			},
		},

		"Event type and id should be decoded.": {
			stream: "id: 7\nevent: progress\ndata:x\n\n",
			expEvents: []sse.Event{
				{ID: "7", Type: "progress", Data: "x"},
			},
		},

		"CRLF line endings should be supported.": {
			stream: "data: x\r\n\r\n",
			expEvents: []sse.Event{
				{Data: "x"},
			},
		},

		"Unknown fields and empty frames should be ignored.": {
			stream: "retry: 1000\n\n\n\ndata: x\n\n",
			expEvents: []sse.Event{
				{Data: "x"},
			},
		},

		"A trailing frame without terminator should be discarded.": {
			stream: "data: x\n\ndata: partial",
			expEvents: []sse.Event{
				{Data: "x"},
			},
		},

		"An empty stream should end.": {
			stream: "",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			dec := sse.NewDecoder(strings.NewReader(test.stream))

			var got []sse.Event
			for {
				ev, err := dec.Next(context.Background())
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				got = append(got, ev)
			}

			assert.Equal(t, test.expEvents, got)
		})
	}
}

func TestDecoderNextCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sse.NewDecoder(strings.NewReader("data: x\n\n")).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
