package scope

import "github.com/vikkkko/zinc/internal/diag"

// UnresolvedError reports an identifier that does not resolve in scope,
// with fuzzy "did you mean" suggestions drawn from candidates (spec §7
// "Scope": "item undeclared").
type UnresolvedError struct {
	Name        string
	Loc         diag.Location
	Suggestions []string
}

func (e *UnresolvedError) Error() string {
	d := diag.NewWithSuggestions(diag.KindScope, e.Loc, e.Name, e.Suggestions, "undeclared identifier %q", e.Name)
	return d.Error()
}

// ResolvePath walks path left to right per spec §4.3 "resolve_path": the
// first segment is looked up recursively from start up the parent chain;
// each subsequent segment is looked up only within the module/struct/
// enum/contract scope attached to the previous segment's resolved item via
// OwnerScope in arena.
func ResolvePath(start *Scope, arena *Arena, path []string, locs []diag.Location) (*Item, error) {
	if len(path) == 0 {
		panic("scope: ResolvePath called with empty path")
	}
	item, found := start.Lookup(path[0])
	if item == nil {
		return nil, &UnresolvedError{Name: path[0], Loc: locs[0], Suggestions: diag.Suggest(path[0], candidatesUpChain(start))}
	}
	_ = found
	cur := item
	for i := 1; i < len(path); i++ {
		next, ns, err := stepInto(cur, arena, path[i], locs[i])
		if err != nil {
			return nil, err
		}
		_ = ns
		cur = next
	}
	return cur, nil
}

func stepInto(cur *Item, arena *Arena, name string, loc diag.Location) (*Item, *Scope, error) {
	ns := ownerScopeOf(cur, arena)
	if ns == nil {
		return nil, nil, &NotANamespaceError{Name: cur.Name, Loc: loc}
	}
	item, ok := ns.LookupLocal(name)
	if !ok {
		return nil, nil, &UnresolvedError{Name: name, Loc: loc, Suggestions: diag.Suggest(name, ns.Names())}
	}
	return item, ns, nil
}

func ownerScopeOf(item *Item, arena *Arena) *Scope {
	if item.OwnerScope != nil {
		return item.OwnerScope
	}
	if s, ok := item.Value.(*Scope); ok {
		return s
	}
	if typeID, ok := typeIDOf(item); ok {
		return arena.Get(typeID)
	}
	return nil
}

// typeIDOf extracts a type_id from an item's resolved Value when it is a
// struct/enum/contract Type, matching any Value with a TypeID method instead
// of importing the types package; callers that need this populate OwnerScope directly
// instead, so this is only a fallback for items resolved purely through the
// arena.
func typeIDOf(item *Item) (int64, bool) {
	type hasTypeID interface{ TypeID() int64 }
	if h, ok := item.Value.(hasTypeID); ok {
		return h.TypeID(), true
	}
	return 0, false
}

func candidatesUpChain(s *Scope) []string {
	var names []string
	for cur := s; cur != nil; cur = cur.Parent {
		names = append(names, cur.Names()...)
	}
	return names
}
