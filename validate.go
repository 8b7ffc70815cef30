package clashpatch

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// validateDocument decodes the reconciled bytes and checks the structural
// invariant the engine promises: the output is still a well-formed
// top-level mapping and, when the relay chain was in play, the sections it
// rewired are still present. Runs only on changed documents, before any
// write.
func validateDocument(doc []byte, features Features) error {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(false)
	if err := dec.Decode(&root); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("%w: top level is not a mapping", ErrInvalidDocument)
	}
	if !features.RelayChain {
		return nil
	}
	top := root.Content[0]
	for _, key := range []string{"proxies", "proxy-groups", "rules"} {
		if !hasMappingKey(top, key) {
			return fmt.Errorf("%w: lost top-level %q", ErrInvalidDocument, key)
		}
	}
	return nil
}

func hasMappingKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return true
		}
	}
	return false
}
