package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ArgPair is one encoder-argument entry in a profile's ordered video/audio
// arg list: a flag name and its stringified value, in the declaration
// order the operator wrote them. Boolean scalars are preserved as bare
// flags (Value == "") when true, and dropped entirely when false, the
// Go-idiomatic equivalent of the source's "append str(value) unless bool"
// flattening.
type ArgPair struct {
	Flag  string
	Value string
}

// ArgList is an ordered list of encoder arguments, decoded from a YAML
// mapping while preserving declaration order — a plain Go map would
// silently randomize encoder argument order, which §9 of the spec
// forbids for any profile-declared ordering.
type ArgList []ArgPair

// UnmarshalYAML walks the mapping node's Content pairs directly instead
// of decoding into a map, which is the only way with yaml.v3 to keep
// the operator's declaration order.
func (a *ArgList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping, got kind %d", node.Kind)
	}

	out := make(ArgList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]

		flag := keyNode.Value

		if valNode.Tag == "!!bool" {
			var b bool
			if err := valNode.Decode(&b); err != nil {
				return fmt.Errorf("decoding bool value for %s: %w", flag, err)
			}
			if !b {
				continue
			}
			out = append(out, ArgPair{Flag: flag})
			continue
		}

		out = append(out, ArgPair{Flag: flag, Value: valNode.Value})
	}

	*a = out
	return nil
}

// Argv renders the list into a flat argument vector suitable for
// appending to an exec.Command argv, e.g. ["--preset", "6", "--no-audio"].
func (a ArgList) Argv() []string {
	argv := make([]string, 0, len(a)*2)
	for _, pair := range a {
		argv = append(argv, pair.Flag)
		if pair.Value != "" {
			argv = append(argv, pair.Value)
		}
	}
	return argv
}

// Index returns the position of the first entry whose Flag matches, or
// -1 if absent. Used when splicing a filter chain into a pre-existing
// "-vf" entry rather than appending a duplicate one.
func (a ArgList) Index(flag string) int {
	for i, pair := range a {
		if pair.Flag == flag {
			return i
		}
	}
	return -1
}
