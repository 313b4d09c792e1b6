package backup

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
)

// Document is a snapshot document: collection identifier to serialized records.
type Document map[string][]Record

// EncodeDocument writes doc as indented JSON.
func EncodeDocument(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding snapshot document: %w", err)
	}
	return nil
}

// DecodeDocument parses a snapshot document. Integers are decoded as int64
// and other numbers as float64; nested objects or arrays inside a record are rejected.
func DecodeDocument(r io.Reader) (Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw map[string][]map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding snapshot document: %w", err)
	}

	doc := make(Document, len(raw))
	for id, records := range raw {
		out := make([]Record, len(records))
		for i, rec := range records {
			if rec == nil {
				return nil, fmt.Errorf("collection %s: record %d is null", id, i)
			}
			for field, v := range rec {
				scalar, err := decodedScalar(v)
				if err != nil {
					return nil, fmt.Errorf("collection %s: record %d: field %s: %w", id, i, field, err)
				}
				rec[field] = scalar
			}
			out[i] = rec
		}
		doc[id] = out
	}
	return doc, nil
}

func decodedScalar(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool:
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return f, nil
	case float64:
		return x, nil
	default:
		return nil, fmt.Errorf("non-scalar value of type %T", v)
	}
}

// portableRecord converts a row as returned by the store into portable scalars:
// timestamps become RFC 3339 strings in UTC and byte slices become strings.
func portableRecord(row Record) (Record, error) {
	out := make(Record, len(row))
	for field, v := range row {
		p, err := portableScalar(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		out[field] = p
	}
	return out, nil
}

func portableScalar(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int64, float64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
