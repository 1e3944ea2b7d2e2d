package ir

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Pos is a source location (1-based line/column), mirroring the location
// information yaml.Node exposes.
type Pos struct {
	Line   int
	Column int
}

// Document is the parsed, location-annotated key/value tree produced by the
// L0 document model. Surface syntax loading (file discovery, includes,
// templating) is an external collaborator's concern per spec §1; Document
// only owns decoding a single YAML byte stream into a location-aware tree
// and exposing both the raw node tree (for pointers) and a typed view (for
// validation and normalization).
type Document struct {
	// root is the raw parsed node tree, used to recover Line/Column for
	// diagnostics via Pointer.
	root *yaml.Node

	// Raw is the document decoded into a typed schema for validation and
	// normalization convenience.
	Raw RawDocument
}

// Parse decodes a single YAML document, rejecting duplicate mapping keys
// (ERR_YAML_DUPLICATE_KEY) and capturing line/column information for later
// diagnostics.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, newErr(ErrDocumentSchema, "", "invalid yaml: %v", err)
	}
	if root.Kind == 0 {
		return nil, newErr(ErrDocumentSchema, "", "empty document")
	}

	content := &root
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		content = root.Content[0]
	}

	if err := checkDuplicateKeys(content, "$"); err != nil {
		return nil, err
	}

	var raw RawDocument
	if err := root.Decode(&raw); err != nil {
		return nil, newErr(ErrDocumentSchema, "$", "schema decode failed: %v", err)
	}

	return &Document{root: content, Raw: raw}, nil
}

// checkDuplicateKeys walks a decoded node tree and rejects mapping nodes
// that repeat a scalar key, the condition spec §6 calls out as
// ERR_YAML_DUPLICATE_KEY. yaml.v3's default unmarshal silently lets the last
// key win, which would hide author mistakes in long documents.
func checkDuplicateKeys(node *yaml.Node, pointer string) error {
	switch node.Kind {
	case yaml.MappingNode:
		seen := make(map[string]bool, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			valNode := node.Content[i+1]
			key := keyNode.Value
			if seen[key] {
				return newErr(ErrYAMLDuplicateKey, fmt.Sprintf("%s/%s", pointer, key),
					"duplicate key %q at line %d", key, keyNode.Line)
			}
			seen[key] = true
			if err := checkDuplicateKeys(valNode, fmt.Sprintf("%s/%s", pointer, key)); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, child := range node.Content {
			if err := checkDuplicateKeys(child, fmt.Sprintf("%s/%d", pointer, i)); err != nil {
				return err
			}
		}
	case yaml.DocumentNode:
		for _, child := range node.Content {
			if err := checkDuplicateKeys(child, pointer); err != nil {
				return err
			}
		}
	}
	return nil
}

// Pointer returns the best-effort location of a JSON-pointer-style path
// within the parsed tree, for attaching to diagnostics. If the path only
// partly resolves (e.g. it describes a node added during normalization
// rather than present in source), returns the location of the deepest
// segment that does resolve; returns the zero Pos only when no tree was
// parsed.
func (d *Document) Pointer(pointer string) Pos {
	node := d.root
	if node == nil {
		return Pos{}
	}
	segments := splitPointer(pointer)
	for _, seg := range segments {
		next := descend(node, seg)
		if next == nil {
			return Pos{Line: node.Line, Column: node.Column}
		}
		node = next
	}
	return Pos{Line: node.Line, Column: node.Column}
}

func descend(node *yaml.Node, seg string) *yaml.Node {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == seg {
				return node.Content[i+1]
			}
		}
	case yaml.SequenceNode:
		var idx int
		if _, err := fmt.Sscanf(seg, "%d", &idx); err == nil && idx >= 0 && idx < len(node.Content) {
			return node.Content[idx]
		}
	}
	return nil
}

func splitPointer(pointer string) []string {
	var out []string
	cur := ""
	for _, r := range pointer {
		if r == '/' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	if len(out) > 0 && out[0] == "$" {
		out = out[1:]
	}
	return out
}
