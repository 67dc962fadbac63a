package browser

import (
	"strings"

	"github.com/v0xg/lookaround/internal/locator"
)

// Selector translates a locator strategy and value into a CSS selector.
// Attribute selectors are used for id, class and name so that values which
// are not valid CSS identifiers (leading digits, colons) still match.
func Selector(by locator.Strategy, value string) string {
	switch by {
	case locator.Id:
		return `[id="` + escapeAttr(value) + `"]`
	case locator.Class:
		return `[class~="` + escapeAttr(value) + `"]`
	case locator.Name:
		return `[name="` + escapeAttr(value) + `"]`
	case locator.Tag, locator.Css:
		return value
	default:
		return value
	}
}

func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
