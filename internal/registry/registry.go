// Package registry holds the ordered set of program entries behind a single
// mutex. Every read or write of an entry happens inside With.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/loykin/taskmaster/internal/program"
)

// LookupError reports an index or name that does not resolve to an entry.
type LookupError struct {
	Index int
	Name  string
}

func (e *LookupError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("no program named %q", e.Name)
	}
	return fmt.Sprintf("no program at index %d", e.Index)
}

type Registry struct {
	mu      sync.Mutex
	entries []*program.Entry
	byName  map[string]*program.Entry
}

// New builds a registry with one entry per program, ordered by name.
func New(programs map[string]program.Config) *Registry {
	r := &Registry{byName: make(map[string]*program.Entry, len(programs))}
	names := make([]string, 0, len(programs))
	for n := range programs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		e := program.New(n, programs[n])
		r.entries = append(r.entries, e)
		r.byName[n] = e
	}
	return r
}

// With runs fn while holding the registry lock.
func (r *Registry) With(fn func(v *View) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&View{r: r})
}

// View is the locked face of the registry. It must not escape fn.
type View struct {
	r *Registry
}

func (v *View) Len() int { return len(v.r.entries) }

// Entries returns the entries in display order. The slice is a copy; the
// entries are not.
func (v *View) Entries() []*program.Entry {
	out := make([]*program.Entry, len(v.r.entries))
	copy(out, v.r.entries)
	return out
}

// At resolves a zero-based display index.
func (v *View) At(i int) (*program.Entry, error) {
	if i < 0 || i >= len(v.r.entries) {
		return nil, &LookupError{Index: i}
	}
	return v.r.entries[i], nil
}

// Get resolves a name.
func (v *View) Get(name string) (*program.Entry, error) {
	e, ok := v.r.byName[name]
	if !ok {
		return nil, &LookupError{Name: name}
	}
	return e, nil
}

// IndexOf returns the display index of name, or -1.
func (v *View) IndexOf(name string) int {
	for i, e := range v.r.entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// Add appends a new entry. Adding an existing name returns the existing entry.
func (v *View) Add(name string, cfg program.Config) *program.Entry {
	if e, ok := v.r.byName[name]; ok {
		return e
	}
	e := program.New(name, cfg)
	v.r.entries = append(v.r.entries, e)
	v.r.byName[name] = e
	return e
}

// Detach removes name from the registry and returns its entry so the caller
// can stop it outside the lock.
func (v *View) Detach(name string) (*program.Entry, bool) {
	e, ok := v.r.byName[name]
	if !ok {
		return nil, false
	}
	delete(v.r.byName, name)
	for i, x := range v.r.entries {
		if x == e {
			v.r.entries = append(v.r.entries[:i], v.r.entries[i+1:]...)
			break
		}
	}
	return e, true
}
