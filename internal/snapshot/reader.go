// Package snapshot decodes a device memory allocation snapshot container
// and selects the event trace for one device.
//
// The container is treated as opaque outside this package: callers get back
// a plain slice of model.Event for the requested device index. Two wire
// encodings are supported (see Format); both decode to the same nested
// mapping/sequence shape before the device_traces key is walked.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/allocsnap/allocsnap/internal/logging"
	"github.com/allocsnap/allocsnap/internal/model"
)

// Format identifies the wire encoding of a snapshot container.
type Format int

const (
	// FormatAuto sniffs the first non-whitespace byte: '{' or '[' means
	// JSON, anything else is treated as MessagePack.
	FormatAuto Format = iota
	FormatJSON
	FormatMsgpack
)

// Kind enumerates the error categories this package raises, matching
// spec.md's error table verbatim.
type Kind string

const (
	KindDecodeError      Kind = "DecodeError"
	KindDeviceOutOfRange Kind = "DeviceOutOfRange"
	KindEmptyDevice      Kind = "EmptyDevice"
)

// Error is raised by Read when the container can't be decoded or the
// requested device index doesn't resolve to a non-empty trace.
type Error struct {
	Kind  Kind
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("snapshot: %s: %s: %v", e.Kind, e.Msg, e.Inner)
	}
	return fmt.Sprintf("snapshot: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func decodeErr(inner error) *Error {
	return &Error{Kind: KindDecodeError, Msg: "malformed snapshot container", Inner: inner}
}

// sniff picks JSON vs MessagePack from the first non-whitespace byte.
func sniff(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatMsgpack
}

// decode turns the raw container bytes into a generic mapping, the
// language-neutral shape spec.md §6 describes.
func decode(data []byte, format Format) (map[string]any, error) {
	if format == FormatAuto {
		format = sniff(data)
	}

	var out map[string]any
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &out)
	case FormatMsgpack:
		// Loose decoding widens every integer to int64/uint64 and every
		// float to float64, the types toInt64/toUint64 handle.
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.UseLooseInterfaceDecoding(true)
		err = dec.Decode(&out)
	default:
		return nil, fmt.Errorf("unknown snapshot format %d", format)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Read decodes a snapshot container and returns the event trace for
// deviceID, translating it into model.Event values.
//
// Errors: DecodeError on a malformed container, DeviceOutOfRange when
// deviceID >= len(device_traces), EmptyDevice when the selected trace has
// zero events.
func Read(data []byte, format Format, deviceID int) ([]model.Event, error) {
	logger := logging.Default().Component("snapshot")

	dump, err := decode(data, format)
	if err != nil {
		return nil, decodeErr(err)
	}

	rawTraces, ok := dump["device_traces"]
	if !ok {
		return nil, decodeErr(fmt.Errorf("missing device_traces key"))
	}

	traces, err := asSliceOfSlices(rawTraces)
	if err != nil {
		return nil, decodeErr(err)
	}

	logger.Debug("decoded snapshot", "devices", len(traces))

	if deviceID < 0 || deviceID >= len(traces) {
		expected := "0"
		if n := len(traces); n > 1 {
			expected = fmt.Sprintf("0..%d", n-1)
		}
		return nil, &Error{
			Kind: KindDeviceOutOfRange,
			Msg:  fmt.Sprintf("device id out of range, expected %s, got %d", expected, deviceID),
		}
	}

	rawEvents := traces[deviceID]
	if len(rawEvents) == 0 {
		var nonEmpty []int
		for i, tr := range traces {
			if len(tr) > 0 {
				nonEmpty = append(nonEmpty, i)
			}
		}
		return nil, &Error{
			Kind: KindEmptyDevice,
			Msg:  fmt.Sprintf("requested device (%d) has no trace in this snapshot; devices with trace: %v", deviceID, nonEmpty),
		}
	}

	events := make([]model.Event, 0, len(rawEvents))
	for _, raw := range rawEvents {
		ev, err := decodeEvent(raw)
		if err != nil {
			return nil, decodeErr(err)
		}
		events = append(events, ev)
	}

	return events, nil
}

// asSliceOfSlices converts a decoded device_traces value into [][]any,
// tolerating the two shapes json.Unmarshal and msgpack.Unmarshal produce
// for a nested sequence of sequences.
func asSliceOfSlices(v any) ([][]any, error) {
	outer, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("device_traces is not a sequence")
	}
	result := make([][]any, 0, len(outer))
	for i, item := range outer {
		inner, ok := item.([]any)
		if !ok {
			if item == nil {
				result = append(result, nil)
				continue
			}
			return nil, fmt.Errorf("device_traces[%d] is not a sequence", i)
		}
		result = append(result, inner)
	}
	return result, nil
}

func decodeEvent(raw any) (model.Event, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return model.Event{}, fmt.Errorf("event is not a mapping")
	}

	ev := model.Event{}
	if action, ok := m["action"].(string); ok {
		ev.Action = action
	} else {
		return model.Event{}, fmt.Errorf("event missing action")
	}
	ev.Addr = toUint64(m["addr"])
	ev.Size = toInt64(m["size"])

	if rawFrames, ok := m["frames"].([]any); ok {
		ev.Frames = make([]model.Frame, 0, len(rawFrames))
		for _, rf := range rawFrames {
			fm, ok := rf.(map[string]any)
			if !ok {
				continue
			}
			frame := model.Frame{
				Line: int(toInt64(fm["line"])),
			}
			if fn, ok := fm["filename"].(string); ok {
				frame.Filename = fn
			}
			if n, ok := fm["name"].(string); ok {
				frame.Name = n
			}
			ev.Frames = append(ev.Frames, frame)
		}
	}

	return ev, nil
}

// toInt64/toUint64 cope with the fact that both JSON and MessagePack
// decoders hand back numbers as varying Go types (float64, int64, uint64)
// depending on encoding and magnitude.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toUint64(v any) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case int64:
		return uint64(n)
	case int:
		return uint64(n)
	case float64:
		return uint64(n)
	default:
		return 0
	}
}
