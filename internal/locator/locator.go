package locator

import (
	"fmt"
	"strconv"
	"strings"
)

// Strategy selects how a locator value is matched against child elements
type Strategy int

const (
	Id Strategy = iota
	Tag
	Class
	Css
	Name
)

var strategyKeys = map[string]Strategy{
	"id":    Id,
	"tag":   Tag,
	"class": Class,
	"css":   Css,
	"name":  Name,
}

// String returns the script key for the strategy (id, tag, class, css, name)
func (s Strategy) String() string {
	switch s {
	case Id:
		return "id"
	case Tag:
		return "tag"
	case Class:
		return "class"
	case Css:
		return "css"
	case Name:
		return "name"
	default:
		return "strategy(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseStrategy maps a script key to its Strategy
func ParseStrategy(key string) (Strategy, error) {
	s, ok := strategyKeys[key]
	if !ok {
		return 0, &ConfigError{Kind: UnknownStrategy, Input: key}
	}
	return s, nil
}

// Locator is a single step towards a child element.
// A nil Index means "first match".
type Locator struct {
	Strategy Strategy
	Value    string
	Index    *int
}

// At returns a copy of the locator pinned to the i-th match
func (l Locator) At(i int) Locator {
	l.Index = &i
	return l
}

// Indexed reports whether the locator selects a specific match
func (l Locator) Indexed() bool {
	return l.Index != nil
}

// String renders the locator in its script form, e.g. "class=item[2]"
func (l Locator) String() string {
	if l.Index == nil {
		return l.Strategy.String() + "=" + l.Value
	}
	return fmt.Sprintf("%s=%s[%d]", l.Strategy, l.Value, *l.Index)
}

// Parse turns a raw "strategy=value" token into a Locator. A trailing
// "[k]" with integer k is stripped from the value and becomes the index.
func Parse(token string) (Locator, error) {
	raw := strings.TrimSpace(token)
	parts := strings.Split(raw, "=")
	if len(parts) != 2 {
		return Locator{}, &ConfigError{Kind: MalformedLocator, Input: token}
	}
	key := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if key == "" || value == "" {
		return Locator{}, &ConfigError{Kind: MalformedLocator, Input: token}
	}

	strategy, err := ParseStrategy(key)
	if err != nil {
		return Locator{}, &ConfigError{Kind: UnknownStrategy, Input: token}
	}

	loc := Locator{Strategy: strategy, Value: value}

	if !strings.HasSuffix(value, "]") {
		return loc, nil
	}
	open := strings.LastIndex(value, "[")
	if open < 0 {
		return loc, nil
	}
	inner := value[open+1 : len(value)-1]
	idx, convErr := strconv.Atoi(strings.TrimSpace(inner))
	if convErr != nil {
		// not an index, e.g. css=input[required]
		return loc, nil
	}
	if idx < 0 {
		return Locator{}, &ConfigError{Kind: InvalidIndex, Input: token}
	}
	loc.Value = strings.TrimSpace(value[:open])
	if loc.Value == "" {
		return Locator{}, &ConfigError{Kind: MalformedLocator, Input: token}
	}
	loc.Index = &idx
	return loc, nil
}

// MustParse is like Parse but panics on malformed tokens. Intended for tests
// and literals.
func MustParse(token string) Locator {
	loc, err := Parse(token)
	if err != nil {
		panic(err)
	}
	return loc
}
