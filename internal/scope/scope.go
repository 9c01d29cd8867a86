// Package scope implements Zinc's two-phase name resolution (spec §4.3):
// declare every item without evaluating it, then define items lazily on
// first use, detecting cycles via a per-item state machine.
package scope

import (
	"fmt"

	"github.com/vikkkko/zinc/internal/diag"
)

// ItemKind classifies what a Scope entry names.
type ItemKind int

const (
	KindVariable ItemKind = iota
	KindField
	KindConstant
	KindVariant
	KindType
	KindModule
)

// DefState is the lazy-definition state machine from spec §9 "Lazy item
// definition": Declared -> Defining -> Defined | Err, transitioned exactly
// once per item.
type DefState int

const (
	Declared DefState = iota
	Defining
	Defined
	DefErr
)

// Item is a single entry in a Scope's namespace.
type Item struct {
	Name  string
	Kind  ItemKind
	State DefState
	Loc   diag.Location

	// Stmt holds whatever AST node produced this item, for lazy definition
	// (opaque to this package; the semantic analyzer type-asserts it).
	Stmt interface{}

	// Value holds the resolved semantic value (a *types.Type, types.Constant,
	// or *Scope for KindModule/associated-type items) once State == Defined.
	Value interface{}

	// OwnerScope is the scope associated items (impl-block methods, enum
	// variants, struct fields) are reachable through; nil for plain items.
	OwnerScope *Scope
}

// Scope is a hierarchical namespace (spec §3 "Scope").
type Scope struct {
	Name      string
	Parent    *Scope
	Items     map[string]*Item
	IsBuiltIn bool
}

// New creates a child scope of parent (nil for the intrinsic root scope).
func New(name string, parent *Scope) *Scope {
	return &Scope{Name: name, Parent: parent, Items: make(map[string]*Item)}
}

// RedeclaredError reports a duplicate item name within one scope (spec §7
// "Scope": "item redeclared (with the reference site)").
type RedeclaredError struct {
	Name      string
	Loc       diag.Location
	FirstSite diag.Location
}

func (e *RedeclaredError) Error() string {
	return fmt.Sprintf("%s: %q redeclared (first declared at %s)", e.Loc, e.Name, e.FirstSite)
}

// Declare registers a new item in s. A variable literally named "self" is
// exempt from the redeclaration check against the module's own `self` alias
// (spec §4.3), since every method body rebinds `self` in a fresh child
// scope.
func (s *Scope) Declare(name string, kind ItemKind, loc diag.Location, stmt interface{}) (*Item, error) {
	if existing, ok := s.Items[name]; ok && !(name == "self" && kind == KindVariable) {
		return nil, &RedeclaredError{Name: name, Loc: loc, FirstSite: existing.Loc}
	}
	item := &Item{Name: name, Kind: kind, State: Declared, Loc: loc, Stmt: stmt}
	s.Items[name] = item
	return item, nil
}

// DeclareResolved registers an already-resolved item (e.g. an intrinsic),
// skipping the Declared/Defining lifecycle.
func (s *Scope) DeclareResolved(name string, kind ItemKind, value interface{}) *Item {
	item := &Item{Name: name, Kind: kind, State: Defined, Value: value}
	s.Items[name] = item
	return item
}

// Lookup finds name in s or any ancestor, recursively (spec §4.3
// "resolve_path": "the first identifier is looked up recursively up the
// parent chain").
func (s *Scope) Lookup(name string) (*Item, *Scope) {
	for cur := s; cur != nil; cur = cur.Parent {
		if item, ok := cur.Items[name]; ok {
			return item, cur
		}
	}
	return nil, nil
}

// LookupLocal finds name only within s, not its ancestors (spec §4.3:
// "subsequent identifiers non-recursively inside the module/struct/
// enum/contract scope of the previous result").
func (s *Scope) LookupLocal(name string) (*Item, bool) {
	item, ok := s.Items[name]
	return item, ok
}

// Names returns every item name declared directly in s, for "did you mean"
// suggestion candidates.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.Items))
	for n := range s.Items {
		names = append(names, n)
	}
	return names
}

// CycleError reports a definition cycle detected while defining an item
// (spec §4.3, §9 "Lazy item definition").
type CycleError struct {
	Name string
	Loc  diag.Location
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: definition cycle detected while defining %q", e.Loc, e.Name)
}

// BeginDefine transitions item from Declared to Defining, returning a
// CycleError if it is already Defining (a cycle) or DefErr (a prior
// failure, re-reported at the new use site).
func BeginDefine(item *Item, loc diag.Location) error {
	switch item.State {
	case Defining:
		return &CycleError{Name: item.Name, Loc: loc}
	case DefErr:
		return &CycleError{Name: item.Name, Loc: loc}
	case Defined:
		return nil
	}
	item.State = Defining
	return nil
}

// FinishDefine transitions item to Defined (err == nil) or DefErr.
func FinishDefine(item *Item, value interface{}, err error) {
	if err != nil {
		item.State = DefErr
		return
	}
	item.State = Defined
	item.Value = value
}

// NotANamespaceError reports a path segment resolving to something that
// cannot be indexed further (spec §7 "Scope": "not-a-namespace").
type NotANamespaceError struct {
	Name string
	Loc  diag.Location
}

func (e *NotANamespaceError) Error() string {
	return fmt.Sprintf("%s: %q is not a namespace", e.Loc, e.Name)
}

// AssociatedWithoutOwnerError reports a bare reference to an item only
// reachable through its owning type (spec §4.3, §7).
type AssociatedWithoutOwnerError struct {
	Name string
	Loc  diag.Location
}

func (e *AssociatedWithoutOwnerError) Error() string {
	return fmt.Sprintf("%s: associated item %q is not reachable without its owning type", e.Loc, e.Name)
}

// Arena stores the scopes owned by struct/enum/contract declarations, keyed
// by type_id instead of a back-pointer from Scope to its owning Type (spec
// §9 "Reference cycles in the IR"): composites contain a scope that may
// refer back to the owning type (e.g. for `Self`), modeled here without
// cyclic pointers.
type Arena struct {
	scopes map[int64]*Scope
}

// NewArena creates an empty scope arena.
func NewArena() *Arena {
	return &Arena{scopes: make(map[int64]*Scope)}
}

// Set associates typeID with its owned scope.
func (a *Arena) Set(typeID int64, s *Scope) { a.scopes[typeID] = s }

// Get returns the scope owned by typeID, or nil.
func (a *Arena) Get(typeID int64) *Scope { return a.scopes[typeID] }
