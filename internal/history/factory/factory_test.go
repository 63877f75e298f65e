package factory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/taskmaster/internal/history/opensearch"
	"github.com/loykin/taskmaster/internal/history/sqlite"
)

func TestFactoryDSNTypes(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name        string
		dsn         string
		expectError bool
	}{
		{"Empty DSN", "", true},
		{"Invalid scheme", "invalid://test", true},
		{"SQLite file DSN", "sqlite://" + filepath.Join(dir, "a.db"), false},
		{"SQLite memory DSN", "sqlite://:memory:", false},
		{"Bare path", filepath.Join(dir, "b.db"), false},
		{"OpenSearch DSN", "opensearch://localhost:9200/logs", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, err := NewSinkFromDSN(tt.dsn)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for DSN %q, got nil", tt.dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for DSN %q: %v", tt.dsn, err)
			}
			if closer, ok := sink.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		})
	}
}

func TestFactoryPicksDriver(t *testing.T) {
	s, err := NewSinkFromDSN("sqlite://:memory:")
	require.NoError(t, err)
	_, ok := s.(*sqlite.Sink)
	assert.True(t, ok)
	_ = s.(*sqlite.Sink).Close()

	s, err = NewSinkFromDSN("elasticsearch://es:9200/idx")
	require.NoError(t, err)
	_, ok = s.(*opensearch.Sink)
	assert.True(t, ok)
}

func TestParseClickHouseDSN(t *testing.T) {
	o, err := ParseClickHouseDSN("clickhouse://bob:secret@ch:9440/metrics?table=events")
	require.NoError(t, err)
	assert.Equal(t, "ch:9440", o.Addr)
	assert.Equal(t, "metrics", o.Database)
	assert.Equal(t, "events", o.Table)
	assert.Equal(t, "bob", o.Username)
	assert.Equal(t, "secret", o.Password)

	o, err = ParseClickHouseDSN("clickhouse://?database=x")
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", o.Addr)
	assert.Equal(t, "x", o.Database)
}

func TestParseOpenSearchDSN(t *testing.T) {
	base, index, err := ParseOpenSearchDSN("opensearch://os:9200/")
	require.NoError(t, err)
	assert.Equal(t, "http://os:9200", base)
	assert.Equal(t, "program-history", index)

	base, _, err = ParseOpenSearchDSN("opensearch://os:9200/i?tls=1")
	require.NoError(t, err)
	assert.Equal(t, "https://os:9200", base)

	_, _, err = ParseOpenSearchDSN("opensearch:///idx")
	assert.Error(t, err)
}

func TestNewSinks(t *testing.T) {
	sinks, err := NewSinks([]string{"sqlite://:memory:", "opensearch://h:1/i"})
	require.NoError(t, err)
	assert.Len(t, sinks, 2)

	_, err = NewSinks([]string{"sqlite://:memory:", "nope://x"})
	assert.ErrorContains(t, err, "nope://x")
}
