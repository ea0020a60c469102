// Package priority implements the merge-preference lookup table.
//
// Keys are either a concatenated "sourceCode+neighborCode" pair or a bare
// neighbor code; pair rules always win over single rules. The identical-code
// short-circuit (priority 0) is evaluated by the decision engine, never here.
package priority

import (
	"sort"
)

// Default is the sentinel returned for codes absent from the table. It is the
// least preferred priority (lower value = more preferred).
const Default = 999999

// Entry is one loaded table row.
type Entry struct {
	Code string
	Pri  int
}

// Table is the in-memory priority lookup. It is loaded once per run and
// immutable afterwards; Lookup is pure.
type Table struct {
	entries map[string]int
}

// New creates an empty table.
func New() *Table {
	return &Table{entries: make(map[string]int)}
}

// Set records a priority for a pair or single code. Duplicate codes follow
// last-wins semantics: the final row loaded from the source is kept.
func (t *Table) Set(code string, pri int) {
	t.entries[code] = pri
}

// Len returns the number of distinct codes in the table.
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup resolves the merge priority of a neighbor with neighborCode as seen
// from a polygon with sourceCode. Pair rules take precedence over single
// rules; absent keys resolve to Default.
func (t *Table) Lookup(sourceCode, neighborCode string) int {
	if pri, ok := t.entries[sourceCode+neighborCode]; ok {
		return pri
	}
	if pri, ok := t.entries[neighborCode]; ok {
		return pri
	}
	return Default
}

// HasPair reports whether an explicit pair rule exists for the combination.
func (t *Table) HasPair(sourceCode, neighborCode string) bool {
	_, ok := t.entries[sourceCode+neighborCode]
	return ok
}

// Entries returns the table contents sorted by code, for inspection output.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for code, pri := range t.entries {
		out = append(out, Entry{Code: code, Pri: pri})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
