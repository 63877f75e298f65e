// Package env composes the environment handed to supervised programs.
package env

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Env is an immutable environment layer: a base (usually the supervisor's
// own environment) plus global overrides. Per-program overrides are applied
// by Merge.
type Env struct {
	base map[string]string
	vars map[string]string
}

// New returns an empty environment.
func New() *Env {
	return &Env{base: map[string]string{}, vars: map[string]string{}}
}

// FromOS returns an environment whose base is the current process environment.
func FromOS() *Env {
	e := New()
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			e.base[k] = v
		}
	}
	return e
}

func (e *Env) clone() *Env {
	c := &Env{base: e.base, vars: make(map[string]string, len(e.vars)+1)}
	for k, v := range e.vars {
		c.vars[k] = v
	}
	return c
}

// WithSet returns a copy of e with K=V added to the global overrides.
func (e *Env) WithSet(k, v string) *Env {
	c := e.clone()
	if k != "" {
		c.vars[k] = v
	}
	return c
}

// WithPairs returns a copy of e with every "K=V" pair added. Malformed pairs
// are skipped.
func (e *Env) WithPairs(pairs []string) *Env {
	c := e.clone()
	for _, kv := range pairs {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			c.vars[k] = v
		}
	}
	return c
}

// WithMap returns a copy of e with every entry of m added.
func (e *Env) WithMap(m map[string]string) *Env {
	c := e.clone()
	for k, v := range m {
		if k != "" {
			c.vars[k] = v
		}
	}
	return c
}

// Merge composes the final environment list applying order:
// base, then global overrides, then perProc ("K=V") overrides.
// ${VAR} references are expanded once against the composed map; unknown
// references are left as written. The result is sorted by key.
func (e *Env) Merge(perProc []string) []string {
	m := make(map[string]string, len(e.base)+len(e.vars)+len(perProc))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.vars {
		m[k] = v
	}
	for _, kv := range perProc {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			m[k] = v
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+expand(m[k], m))
	}
	return out
}

func expand(s string, m map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		name := s[i+2 : i+2+j]
		b.WriteString(s[:i])
		if v, ok := m[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+3+j])
		}
		s = s[i+3+j:]
	}
}

// ParseFile reads a .env file with KEY=VALUE lines. Blank lines and lines
// starting with # are ignored, an "export " prefix is dropped and one pair
// of surrounding quotes is stripped from values.
func ParseFile(path string) (map[string]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	m := make(map[string]string)
	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		k, v, ok := strings.Cut(line, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%s:%d: expected KEY=VALUE", path, n)
		}
		v = strings.TrimSpace(v)
		if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
			v = v[1 : len(v)-1]
		}
		m[k] = v
	}
	return m, sc.Err()
}
