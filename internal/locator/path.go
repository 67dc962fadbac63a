package locator

import (
	"errors"
	"strings"
)

// Path is an ordered sequence of locators walked from a starting element
type Path []Locator

// ParsePath parses every token. All malformed tokens are reported, joined.
func ParsePath(tokens []string) (Path, error) {
	path := make(Path, 0, len(tokens))
	var errs []error
	for _, tok := range tokens {
		loc, err := Parse(tok)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		path = append(path, loc)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return path, nil
}

// MustParsePath is like ParsePath but panics on error
func MustParsePath(tokens ...string) Path {
	p, err := ParsePath(tokens)
	if err != nil {
		panic(err)
	}
	return p
}

// Last returns the final locator. Callers must check for an empty path.
func (p Path) Last() Locator {
	return p[len(p)-1]
}

// Init returns every step but the last
func (p Path) Init() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, l := range p {
		parts[i] = l.String()
	}
	return "[" + strings.Join(parts, " > ") + "]"
}

// Lineage is an absolute path from the document root to one element.
// Values are never mutated once built; Extend always copies.
type Lineage struct {
	steps Path
}

// Root is the empty lineage, i.e. the document root element itself
var Root = Lineage{}

// NewLineage copies the given steps into a lineage
func NewLineage(steps Path) Lineage {
	return Lineage{steps: clonePath(steps)}
}

// Extend records the lineage of the i-th element discovered through path:
// prefix + path[:-1] + path[-1] pinned to index i. If the final step already
// selects an explicit index, the discovered set holds exactly that element
// and the index is kept as is.
func (l Lineage) Extend(path Path, i int) Lineage {
	steps := make(Path, 0, len(l.steps)+len(path))
	steps = append(steps, l.steps...)
	if len(path) == 0 {
		return Lineage{steps: steps}
	}
	steps = append(steps, path.Init()...)
	last := path.Last()
	if !last.Indexed() {
		last = last.At(i)
	}
	steps = append(steps, last)
	return Lineage{steps: steps}
}

// Path returns a copy of the steps
func (l Lineage) Path() Path {
	return clonePath(l.steps)
}

// Len is the number of steps from the root
func (l Lineage) Len() int {
	return len(l.steps)
}

func (l Lineage) String() string {
	return l.steps.String()
}

func clonePath(p Path) Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	for i, loc := range p {
		if loc.Index != nil {
			idx := *loc.Index
			loc.Index = &idx
		}
		out[i] = loc
	}
	return out
}
