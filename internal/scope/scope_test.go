package scope

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vikkkko/zinc/internal/diag"
)

func TestDeclareRedeclared(t *testing.T) {
	s := New("root", nil)
	_, err := s.Declare("x", KindVariable, diag.Location{Line: 1}, nil)
	require.NoError(t, err)
	_, err = s.Declare("x", KindVariable, diag.Location{Line: 2}, nil)
	require.Error(t, err)
	var redecl *RedeclaredError
	require.ErrorAs(t, err, &redecl)
	require.Equal(t, 1, redecl.FirstSite.Line)
}

func TestDeclareSelfExempt(t *testing.T) {
	s := New("method", nil)
	_, err := s.Declare("self", KindVariable, diag.Location{}, nil)
	require.NoError(t, err)
	_, err = s.Declare("self", KindVariable, diag.Location{}, nil)
	require.NoError(t, err, "redeclaring self must not error")
}

func TestLookupWalksParentChain(t *testing.T) {
	root := New("root", nil)
	root.Declare("a", KindConstant, diag.Location{}, nil)
	child := New("child", root)
	child.Declare("b", KindVariable, diag.Location{}, nil)

	item, found := child.Lookup("a")
	require.NotNil(t, item)
	require.Same(t, root, found)

	_, found = child.Lookup("missing")
	require.Nil(t, found)
}

func TestLookupLocalDoesNotWalkParent(t *testing.T) {
	root := New("root", nil)
	root.Declare("a", KindConstant, diag.Location{}, nil)
	child := New("child", root)

	_, ok := child.LookupLocal("a")
	require.False(t, ok)
}

func TestBeginDefineDetectsCycle(t *testing.T) {
	item := &Item{Name: "x", State: Declared}
	require.NoError(t, BeginDefine(item, diag.Location{}))
	require.Equal(t, Defining, item.State)

	err := BeginDefine(item, diag.Location{})
	require.Error(t, err)
	var cyc *CycleError
	require.ErrorAs(t, err, &cyc)
}

func TestFinishDefineSetsStateAndValue(t *testing.T) {
	item := &Item{Name: "x", State: Declared}
	require.NoError(t, BeginDefine(item, diag.Location{}))
	FinishDefine(item, 42, nil)
	require.Equal(t, Defined, item.State)
	require.Equal(t, 42, item.Value)
}

func TestResolvePathIntoModule(t *testing.T) {
	root := New("root", nil)
	arena := NewArena()

	modScope := New("m", root)
	modScope.Declare("inner", KindConstant, diag.Location{}, nil)
	modItem, _ := root.Declare("m", KindModule, diag.Location{}, nil)
	modItem.OwnerScope = modScope

	locs := []diag.Location{{}, {}}
	resolved, err := ResolvePath(root, arena, []string{"m", "inner"}, locs)
	require.NoError(t, err)
	require.Equal(t, "inner", resolved.Name)
}

func TestResolvePathUnresolvedSuggestsClosestName(t *testing.T) {
	root := New("root", nil)
	root.Declare("counter", KindVariable, diag.Location{}, nil)
	arena := NewArena()

	_, err := ResolvePath(root, arena, []string{"countr"}, []diag.Location{{}})
	require.Error(t, err)
	var unresolved *UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	require.Contains(t, unresolved.Suggestions, "counter")
}

func TestResolvePathNotANamespace(t *testing.T) {
	root := New("root", nil)
	root.Declare("x", KindVariable, diag.Location{}, nil)
	arena := NewArena()

	_, err := ResolvePath(root, arena, []string{"x", "y"}, []diag.Location{{}, {}})
	require.Error(t, err)
	var notNs *NotANamespaceError
	require.ErrorAs(t, err, &notNs)
}
