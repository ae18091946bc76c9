// Package dialects provides the SQL dialects for MySQL, PostgreSQL and SQLite.
// A dialect is both a compilation target, spelling provider trees as SQL, and
// a catalog source, supplying the metadata queries the extractor runs.
package dialects

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/extract"
)

// Dialect defines database-specific behaviors.
type Dialect interface {
	compiler.Dialect
	extract.Dialect
}

// ErrUnknownDialect is returned by Lookup for names nobody registered.
var ErrUnknownDialect = errors.New("unknown dialect")

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// Lookup retrieves a registered dialect by driver name.
func Lookup(name string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	if d, ok := dialects[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, name)
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	d, err := Lookup(name)
	if err != nil {
		panic("unsupported dialect: " + name)
	}
	return d
}

// Names returns the registered driver names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func join(parts []string) string {
	return strings.Join(parts, ", ")
}
