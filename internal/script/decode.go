package script

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/v0xg/lookaround/internal/locator"
	"gopkg.in/yaml.v3"
)

// Script is a decoded script file
type Script struct {
	URL     string
	Engine  string
	Actions []Node
}

type rawScript struct {
	URL     string      `yaml:"url"`
	Engine  string      `yaml:"engine"`
	Actions []yaml.Node `yaml:"actions"`
}

type rawAction struct {
	Type      string      `yaml:"type"`
	Children  []string    `yaml:"children"`
	Actions   []yaml.Node `yaml:"actions"`
	Repeat    string      `yaml:"repeat"`
	MaxRounds int         `yaml:"max_rounds"`
	Min       float64     `yaml:"min"`
	Max       float64     `yaml:"max"`
	Name      string      `yaml:"name"`
	WaitFor   *float64    `yaml:"wait_for"`
}

// Load reads and decodes the script file at path
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a YAML (or JSON) script. The document is either a mapping
// with url, engine and actions, or a bare sequence of actions.
//
// Syntax errors fail the whole decode. Invalid actions do not: they are kept
// with their Invalid field set, and all their errors are returned joined
// alongside the script.
func Decode(r io.Reader) (*Script, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("parse script: empty document")
		}
		return nil, fmt.Errorf("parse script: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	s := &Script{}
	var items []yaml.Node
	switch root.Kind {
	case yaml.SequenceNode:
		for _, n := range root.Content {
			items = append(items, *n)
		}
	case yaml.MappingNode:
		var raw rawScript
		if err := root.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse script: %w", err)
		}
		s.URL = strings.TrimSpace(raw.URL)
		s.Engine = strings.TrimSpace(raw.Engine)
		items = raw.Actions
	default:
		return nil, fmt.Errorf("parse script: expected a mapping or a sequence at line %d", root.Line)
	}

	var errs []error
	if len(items) == 0 {
		errs = append(errs, &locator.ConfigError{Kind: locator.MissingField, Field: "actions"})
	}
	s.Actions = decodeNodes(items, "actions", &errs)
	return s, errors.Join(errs...)
}

func decodeNodes(items []yaml.Node, where string, errs *[]error) []Node {
	nodes := make([]Node, 0, len(items))
	for i := range items {
		nodes = append(nodes, decodeNode(&items[i], fmt.Sprintf("%s[%d]", where, i), errs))
	}
	return nodes
}

func decodeNode(n *yaml.Node, where string, errs *[]error) Node {
	// fail collects the node's problems, each also reported to the caller
	var problems []error
	fail := func(err error) {
		err = fmt.Errorf("%s (line %d): %w", where, n.Line, err)
		problems = append(problems, err)
		*errs = append(*errs, err)
	}
	invalid := func() error {
		return errors.Join(problems...)
	}

	if n.Kind != yaml.MappingNode {
		fail(&locator.ConfigError{Kind: locator.InvalidValue, Field: "action", Input: n.Value})
		return &Unknown{}
	}

	var raw rawAction
	if err := n.Decode(&raw); err != nil {
		// keep whatever did decode so the kind is still known
		fail(&locator.ConfigError{Kind: locator.InvalidValue, Input: err.Error()})
	}

	typ := strings.TrimSpace(raw.Type)
	if typ == "" {
		fail(&locator.ConfigError{Kind: locator.MissingField, Field: "type"})
		return &Unknown{}
	}

	children := func() locator.Path {
		if len(raw.Children) == 0 {
			fail(&locator.ConfigError{Kind: locator.MissingField, Field: "children"})
			return nil
		}
		path, err := locator.ParsePath(raw.Children)
		if err != nil {
			fail(err)
		}
		return path
	}

	switch typ {
	case "list":
		node := &List{Children: children()}
		node.Actions = decodeNodes(raw.Actions, where+".actions", errs)
		node.Invalid = invalid()
		return node

	case "click":
		node := &Click{
			Children:  children(),
			Repeat:    ParseRepeat(strings.TrimSpace(raw.Repeat)),
			MaxRounds: raw.MaxRounds,
		}
		if raw.MaxRounds < 0 {
			fail(&locator.ConfigError{Kind: locator.InvalidValue, Field: "max_rounds", Input: fmt.Sprint(raw.MaxRounds)})
		}
		node.Actions = decodeNodes(raw.Actions, where+".actions", errs)
		node.Invalid = invalid()
		return node

	case "sleep":
		if !finite(raw.Min) {
			fail(&locator.ConfigError{Kind: locator.InvalidValue, Field: "min", Input: fmt.Sprint(raw.Min)})
		}
		if !finite(raw.Max) {
			fail(&locator.ConfigError{Kind: locator.InvalidValue, Field: "max", Input: fmt.Sprint(raw.Max)})
		}
		return &Sleep{Min: raw.Min, Max: raw.Max, Invalid: invalid()}

	case "back":
		return &Back{}

	case "handle":
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			fail(&locator.ConfigError{Kind: locator.MissingField, Field: "name"})
		}
		return &Handle{Name: name, Invalid: invalid()}

	case "simple cookie dialog", "cookie-dialog":
		node := &CookieDialog{Children: children(), WaitFor: DefaultCookieWait}
		if raw.WaitFor != nil {
			if !finite(*raw.WaitFor) || *raw.WaitFor <= 0 {
				fail(&locator.ConfigError{Kind: locator.InvalidValue, Field: "wait_for", Input: fmt.Sprint(*raw.WaitFor)})
			} else {
				node.WaitFor = *raw.WaitFor
			}
		}
		node.Invalid = invalid()
		return node

	default:
		return &Unknown{Tag: typ}
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
