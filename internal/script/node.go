package script

import "github.com/v0xg/lookaround/internal/locator"

// Kind identifies the concrete type of a Node
type Kind int

const (
	KindList Kind = iota
	KindClick
	KindSleep
	KindBack
	KindHandle
	KindCookieDialog
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindClick:
		return "click"
	case KindSleep:
		return "sleep"
	case KindBack:
		return "back"
	case KindHandle:
		return "handle"
	case KindCookieDialog:
		return "cookie-dialog"
	default:
		return "unknown"
	}
}

// Node is one step of a script. The set of implementations is closed:
// *List, *Click, *Sleep, *Back, *Handle, *CookieDialog and *Unknown.
type Node interface {
	Kind() Kind
	node()
}

// Repeat controls how often a Click node fires
type Repeat int

const (
	Once Repeat = iota
	WhileClickable
)

func (r Repeat) String() string {
	if r == WhileClickable {
		return "while-clickable"
	}
	return "once"
}

// ParseRepeat maps the raw repeat value. Anything unrecognised means Once.
func ParseRepeat(raw string) Repeat {
	switch raw {
	case "as long as possible", "while-clickable":
		return WhileClickable
	default:
		return Once
	}
}

// DefaultCookieWait is the cookie dialog timeout in seconds when none is set
const DefaultCookieWait = 10.0

// List applies Actions to every element matched by Children.
type List struct {
	Children locator.Path
	Actions  []Node
	// Invalid holds the configuration error found while decoding, if any.
	// The node then fails on execution without affecting its siblings.
	Invalid error
}

// Click clicks the element at Children and runs Actions from the document
// root after every successful click.
type Click struct {
	Children locator.Path
	Repeat   Repeat
	// MaxRounds caps WhileClickable loops, 0 means no cap
	MaxRounds int
	Actions   []Node
	Invalid   error
}

// Sleep waits a random duration in seconds
type Sleep struct {
	Min     float64
	Max     float64
	Invalid error
}

// Back navigates one step back in history
type Back struct{}

// Handle invokes the page handler registered under Name
type Handle struct {
	Name    string
	Invalid error
}

// CookieDialog waits up to WaitFor seconds for the element at Children to
// become interactable and clicks it once.
type CookieDialog struct {
	Children locator.Path
	WaitFor  float64
	Invalid  error
}

// Unknown is an action of an unrecognised type. Running it does nothing.
type Unknown struct {
	Tag string
}

func (*List) Kind() Kind         { return KindList }
func (*Click) Kind() Kind        { return KindClick }
func (*Sleep) Kind() Kind        { return KindSleep }
func (*Back) Kind() Kind         { return KindBack }
func (*Handle) Kind() Kind       { return KindHandle }
func (*CookieDialog) Kind() Kind { return KindCookieDialog }
func (*Unknown) Kind() Kind      { return KindUnknown }

func (*List) node()         {}
func (*Click) node()        {}
func (*Sleep) node()        {}
func (*Back) node()         {}
func (*Handle) node()       {}
func (*CookieDialog) node() {}
func (*Unknown) node()      {}

// Walk visits every node depth first, parents before their nested actions
func Walk(nodes []Node, fn func(Node)) {
	for _, n := range nodes {
		fn(n)
		switch n := n.(type) {
		case *List:
			Walk(n.Actions, fn)
		case *Click:
			Walk(n.Actions, fn)
		}
	}
}

// HandlerNames lists the distinct handler names referenced by handle nodes,
// in order of first appearance.
func HandlerNames(nodes []Node) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(nodes, func(n Node) {
		h, ok := n.(*Handle)
		if !ok || h.Name == "" || seen[h.Name] {
			return
		}
		seen[h.Name] = true
		names = append(names, h.Name)
	})
	return names
}
