// Package diag defines the shared diagnostic vocabulary used by every
// compiler stage: a source Location, an error Kind taxonomy (spec §7), and a
// Diagnostic type that carries a location plus optional "did you mean"
// suggestions for unresolved names.
package diag

import (
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Location identifies a point in a source file.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Kind classifies a diagnostic by compiler layer, per spec.md §7.
type Kind string

const (
	KindLexical  Kind = "lexical"
	KindSyntax   Kind = "syntax"
	KindScope    Kind = "scope"
	KindType     Kind = "type"
	KindConstant Kind = "constant"
	KindDecode   Kind = "decode"
	KindRuntime  Kind = "runtime"
)

// Diagnostic is a single compiler- or VM-reported error.
type Diagnostic struct {
	Kind        Kind
	Message     string
	Loc         Location
	Suggestions []string
}

func (d *Diagnostic) Error() string {
	if len(d.Suggestions) == 0 {
		return fmt.Sprintf("%s: %s: %s", d.Loc, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s (did you mean %s?)", d.Loc, d.Kind, d.Message, d.Suggestions[0])
}

// New builds a Diagnostic with no suggestions.
func New(kind Kind, loc Location, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Loc: loc}
}

// NewWithSuggestions builds a Diagnostic for an unresolved name, ranking
// candidates by fuzzy closeness to name and keeping the best few.
func NewWithSuggestions(kind Kind, loc Location, name string, candidates []string, format string, args ...interface{}) *Diagnostic {
	d := New(kind, loc, format, args...)
	d.Suggestions = Suggest(name, candidates)
	return d
}

const maxSuggestions = 3

// Suggest ranks candidates by fuzzy-match closeness to name and returns the
// best few, most relevant first. Only candidates that contain name's
// characters in order (ignoring case) are kept, so a transposed pair of
// letters matches nothing. Used for unresolved scope identifiers and
// unknown std::/zksync:: paths.
func Suggest(name string, candidates []string) []string {
	type scored struct {
		name  string
		score int
	}
	var matches []scored
	for _, c := range candidates {
		if fuzzy.MatchFold(name, c) {
			matches = append(matches, scored{c, fuzzy.RankMatchFold(name, c)})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score < matches[j].score
		}
		return matches[i].name < matches[j].name
	})
	out := make([]string, 0, maxSuggestions)
	for _, m := range matches {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, m.name)
	}
	return out
}
