package clashpatch

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

// Preview renderings for runs that compute but do not write.

// UnifiedDiff renders the textual difference between the original and the
// reconciled document. Empty when the documents are identical.
func UnifiedDiff(before, after []byte, fromFile, toFile string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	})
}

// MergePatch renders the logical difference between the two documents as
// an RFC 7386 JSON merge patch over their JSON projections. Formatting-
// only differences vanish here, which is exactly what makes it a readable
// enumeration of intended changes.
func MergePatch(before, after []byte) ([]byte, error) {
	a, err := yamlToJSON(before)
	if err != nil {
		return nil, fmt.Errorf("original document: %w", err)
	}
	b, err := yamlToJSON(after)
	if err != nil {
		return nil, fmt.Errorf("patched document: %w", err)
	}
	return jsonpatch.CreateMergePatch(a, b)
}

// yamlToJSON projects a YAML document onto JSON. Non-string mapping keys
// are stringified; Clash configs do not use them, but a hand-edited file
// might.
func yamlToJSON(doc []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(doc, &v); err != nil {
		return nil, err
	}
	return json.Marshal(jsonable(v))
}

func jsonable(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = jsonable(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = jsonable(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = jsonable(vv)
		}
		return out
	default:
		return t
	}
}
