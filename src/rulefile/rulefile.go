//Package rulefile loads rule sets described as YAML transition tables.
//
//	rulesets:
//	  - name: Majority
//	    description: optional text
//	    horizontal:
//	      "000": 0   # 27 entries keyed by the left, center and right states
//	    vertical: {} # optional, the horizontal table is reused when omitted
package rulefile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"triautomata/src/automaton"
)

//MaxFileSize bounds the size of a rule file
const MaxFileSize = 1024 * 1024

//go:embed examples.yaml
var examplesYAML []byte

type fileYAML struct {
	RuleSets []ruleSetYAML `yaml:"rulesets"`
}

type ruleSetYAML struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Horizontal  map[string]int `yaml:"horizontal"`
	Vertical    map[string]int `yaml:"vertical"`
}

//Load reads and parses the rule file at path
func Load(path string) ([]automaton.RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rule file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: rule file %s exceeds %d bytes", automaton.ErrInvalidArgument, path, MaxFileSize)
	}
	sets, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	return sets, nil
}

//Examples returns the rule sets embedded into the binary
func Examples() []automaton.RuleSet {
	sets, err := Parse(examplesYAML)
	if err != nil {
		panic(err)
	}
	return sets
}

//Parse decodes rule sets from YAML; every table must define all 27 triples
func Parse(data []byte) ([]automaton.RuleSet, error) {
	var doc fileYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", automaton.ErrInvalidArgument, err)
	}

	seen := make(map[string]bool, len(doc.RuleSets))
	sets := make([]automaton.RuleSet, 0, len(doc.RuleSets))
	for i, rs := range doc.RuleSets {
		if rs.Name == "" {
			return nil, fmt.Errorf("%w: rule set #%d has no name", automaton.ErrInvalidArgument, i)
		}
		if seen[rs.Name] {
			return nil, fmt.Errorf("%w: duplicate rule set %q", automaton.ErrInvalidArgument, rs.Name)
		}
		seen[rs.Name] = true

		h, err := parseTable(rs.Name+"-h", rs.Horizontal)
		if err != nil {
			return nil, fmt.Errorf("rule set %q horizontal: %w", rs.Name, err)
		}
		v := h
		if rs.Vertical != nil {
			if v, err = parseTable(rs.Name+"-v", rs.Vertical); err != nil {
				return nil, fmt.Errorf("rule set %q vertical: %w", rs.Name, err)
			}
		}
		sets = append(sets, automaton.RuleSet{
			Name:        rs.Name,
			Description: rs.Description,
			Horizontal:  h,
			Vertical:    v,
		})
	}
	return sets, nil
}

func parseTable(name string, raw map[string]int) (*automaton.Table, error) {
	entries := make(map[automaton.Triple]automaton.State, len(raw))
	for k, v := range raw {
		t, err := parseTriple(k)
		if err != nil {
			return nil, err
		}
		if v < 0 || v >= automaton.NumStates {
			return nil, fmt.Errorf("%w: %q: result %d", automaton.ErrInvalidArgument, k, v)
		}
		entries[t] = automaton.State(v)
	}
	return automaton.NewTable(name, entries)
}

//parseTriple parses keys like "012"
func parseTriple(k string) (t automaton.Triple, err error) {
	if len(k) != len(t) {
		return t, fmt.Errorf("%w: triple %q", automaton.ErrInvalidArgument, k)
	}
	for i := range t {
		if t[i], err = automaton.ParseState(k[i : i+1]); err != nil {
			return t, fmt.Errorf("%w: triple %q", automaton.ErrInvalidArgument, k)
		}
	}
	return t, nil
}
