// Package envelope decodes the Sentry newline-delimited envelope framing
// (component C1). It never fails fatally: malformed input yields a
// best-effort partial decode.
//
// The prototype this gateway replaces parsed envelopes by splitting the
// whole body on newlines, which misaligns whenever an item header carries
// an explicit byte-count length and the payload itself contains a literal
// newline (a binary attachment, or JSON containing embedded '\n'). This
// decoder instead walks the input with an explicit byte cursor, so a
// length-prefixed payload is consumed as exactly that many bytes regardless
// of what bytes it contains.
package envelope

import (
	"bytes"
	"encoding/json"

	"github.com/sentrel/sentrel/internal/models"
)

// Decode parses an envelope body into a header and its items.
func Decode(data []byte) models.Envelope {
	var env models.Envelope

	cursor := 0
	headerLine, next := readLine(data, cursor)
	cursor = next
	_ = json.Unmarshal(headerLine, &env.Header)

	for cursor < len(data) {
		// Skip blank lines between items.
		for cursor < len(data) && data[cursor] == '\n' {
			cursor++
		}
		if cursor >= len(data) {
			break
		}

		itemHeaderLine, afterHeader := readLine(data, cursor)
		if len(itemHeaderLine) == 0 {
			cursor = afterHeader
			continue
		}

		var headers map[string]interface{}
		if err := json.Unmarshal(itemHeaderLine, &headers); err != nil {
			// Not a valid item header; skip this line and try to resync
			// on the next one rather than aborting the whole decode.
			cursor = afterHeader
			continue
		}
		cursor = afterHeader

		payload, afterPayload := readPayload(data, cursor, headers)
		cursor = afterPayload

		// Consume one optional trailing newline after the payload.
		if cursor < len(data) && data[cursor] == '\n' {
			cursor++
		}

		item := models.EnvelopeItem{
			Type:    itemType(headers),
			Headers: headers,
			Payload: payload,
		}
		env.Items = append(env.Items, item)
	}

	return env
}

// readLine returns the bytes up to (but excluding) the next '\n' starting
// at offset, and the cursor position just past that newline (or at len(data)
// if none was found).
func readLine(data []byte, offset int) ([]byte, int) {
	if offset >= len(data) {
		return nil, offset
	}
	idx := bytes.IndexByte(data[offset:], '\n')
	if idx == -1 {
		return data[offset:], len(data)
	}
	return data[offset : offset+idx], offset + idx + 1
}

// readPayload consumes the item payload starting at offset. If the item
// header declares a "length" (bytes), exactly that many bytes are consumed,
// clamped to the remaining input. Otherwise the payload runs to the next
// newline (exclusive).
func readPayload(data []byte, offset int, headers map[string]interface{}) ([]byte, int) {
	if n, ok := itemLength(headers); ok {
		end := offset + n
		if end > len(data) {
			end = len(data)
		}
		if end < offset {
			end = offset
		}
		return data[offset:end], end
	}
	return readLine(data, offset)
}

func itemLength(headers map[string]interface{}) (int, bool) {
	raw, ok := headers["length"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func itemType(headers map[string]interface{}) models.ItemType {
	raw, ok := headers["type"]
	if !ok {
		return models.ItemUnknown
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return models.ItemUnknown
	}
	switch models.ItemType(s) {
	case models.ItemEvent, models.ItemTransaction, models.ItemSession,
		models.ItemAttachment, models.ItemUserReport, models.ItemClientReport:
		return models.ItemType(s)
	default:
		return models.ItemUnknown
	}
}
