package pgstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vidtube/backend/internal/docstore"
)

// Times are stored as {"$date": "..."} with a fixed-width UTC layout so that
// JSONB ordering of two dates matches their chronological order.
const (
	dateKey    = "$date"
	dateLayout = "2006-01-02T15:04:05.000000000Z"
)

func encodeDocument(doc docstore.Document) (string, error) {
	raw, err := json.Marshal(encodeValue(doc))
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(raw), nil
}

func encodeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return map[string]any{dateKey: val.UTC().Format(dateLayout)}
	case docstore.Document:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = encodeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = encodeValue(item)
		}
		return out
	}
	return v
}

func decodeDocument(raw []byte) (docstore.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc, _ := decodeValue(out).(docstore.Document)
	return doc, nil
}

func decodeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		if len(val) == 1 {
			if s, ok := val[dateKey].(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					return t.UTC()
				}
			}
		}
		out := make(docstore.Document, len(val))
		for k, item := range val {
			out[k] = decodeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = decodeValue(item)
		}
		return out
	}
	return v
}
