package policy

import (
	"encoding/json"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const defaultMaskValue = "***"

// Masker redacts configured fields from event payloads before they reach a
// sink (spec §4.9). It operates on a deep copy (the payload is round
// tripped through JSON via gjson/sjson, never mutated in place) and keeps a
// per-run memory of diff_fields' previously seen values.
type Masker struct {
	fields     []string
	diffFields []string
	maskValue  string

	mu   sync.Mutex
	seen map[string]map[string]string // run_id -> path -> last raw JSON value seen
}

// NewMasker builds a Masker from the document's `policies.masking` block.
// A nil/empty block yields a no-op masker.
func NewMasker(cfg map[string]interface{}) (*Masker, error) {
	m := &Masker{maskValue: defaultMaskValue, seen: make(map[string]map[string]string)}
	if cfg == nil {
		return m, nil
	}
	fields, err := stringListField(cfg, "fields")
	if err != nil {
		return nil, newErr(ErrRLPolicyParam, "$/policies/masking/fields", "%v", err)
	}
	diffFields, err := stringListField(cfg, "diff_fields")
	if err != nil {
		return nil, newErr(ErrRLPolicyParam, "$/policies/masking/diff_fields", "%v", err)
	}
	maskValue, err := stringField(cfg, "mask_value", defaultMaskValue)
	if err != nil {
		return nil, newErr(ErrRLPolicyParam, "$/policies/masking/mask_value", "%v", err)
	}
	m.fields = dotToGJSON(fields)
	m.diffFields = dotToGJSON(diffFields)
	m.maskValue = maskValue
	return m, nil
}

// dotToGJSON is a no-op today (dot notation already matches gjson/sjson
// path syntax for plain object traversal); it exists as the one seam where
// a richer path dialect (array indices, wildcards) could be translated
// without touching call sites.
func dotToGJSON(paths []string) []string { return paths }

// Mask returns a masked deep copy of payload. Fixed fields are redacted
// unconditionally and idempotently. diff_fields are redacted only once
// runID has seen a different raw value at that path than the one
// currently seen; the very first observation for a (runID, path) pair is
// never masked, since there is nothing yet to differ from.
func (m *Masker) Mask(runID string, payload map[string]interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	for _, path := range m.fields {
		if !gjson.GetBytes(data, path).Exists() {
			continue
		}
		data, err = sjson.SetBytes(data, path, m.maskValue)
		if err != nil {
			return nil, err
		}
	}

	if len(m.diffFields) > 0 {
		m.mu.Lock()
		memory, ok := m.seen[runID]
		if !ok {
			memory = make(map[string]string)
			m.seen[runID] = memory
		}
		for _, path := range m.diffFields {
			result := gjson.GetBytes(data, path)
			if !result.Exists() {
				continue
			}
			raw := result.Raw
			prev, hadPrev := memory[path]
			memory[path] = raw
			if hadPrev && prev != raw {
				data, err = sjson.SetBytes(data, path, m.maskValue)
				if err != nil {
					m.mu.Unlock()
					return nil, err
				}
			}
		}
		m.mu.Unlock()
	}

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Forget releases a run's diff_fields memory, called once the run reaches
// teardown.
func (m *Masker) Forget(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, runID)
}
