package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ExtractionRecord is the validated document summary returned by the model
type ExtractionRecord struct {
	Identifier    string   `json:"identifier"`
	Date          string   `json:"date"`
	Correspondent string   `json:"correspondent"`
	Summary       string   `json:"summary"`
	Tags          []string `json:"tags,omitempty"`
	// Extra holds any further keys the model returned, stored unvalidated.
	Extra map[string]any `json:"-"`
}

// recordFields has the same layout without the custom (un)marshalers
type recordFields ExtractionRecord

func isSchemaKey(key string) bool {
	switch key {
	case "identifier", "date", "correspondent", "summary", "tags":
		return true
	}
	return false
}

// MarshalJSON writes the schema keys in declaration order followed by the
// extra keys sorted by name
func (r ExtractionRecord) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(recordFields(r))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(r.Extra))
	for key := range r.Extra {
		if !isSchemaKey(key) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return base, nil
	}
	sort.Strings(keys)

	buf := bytes.NewBuffer(base[:len(base)-1])
	for _, key := range keys {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.Extra[key])
		if err != nil {
			return nil, fmt.Errorf("failed to serialize %s: %w", key, err)
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *ExtractionRecord) UnmarshalJSON(data []byte) error {
	var fields recordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	all, err := decodeObject(data)
	if err != nil {
		return err
	}
	*r = ExtractionRecord(fields)
	r.Extra = extraKeys(all)
	return nil
}

// decodeObject keeps numbers as json.Number so they are written back unchanged
func decodeObject(data []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var object map[string]any
	if err := decoder.Decode(&object); err != nil {
		return nil, err
	}
	return object, nil
}

func extraKeys(object map[string]any) map[string]any {
	var extra map[string]any
	for key, value := range object {
		if isSchemaKey(key) {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key] = value
	}
	return extra
}

// MarshalIndent serializes the record with a fixed key order and two-space indent.
// Equal records always produce identical bytes.
func (r *ExtractionRecord) MarshalIndent() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize record %s: %w", r.Identifier, err)
	}
	return data, nil
}
