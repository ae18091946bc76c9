package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/coregx/rse/internal/types"
)

// TypeRule maps native spellings matching Pattern onto a fixed type. Rules
// are tried before the name table.
type TypeRule struct {
	Pattern *regexp.Regexp
	Type    types.TypeInfo
}

// TypeDecoder decodes native column types with name-pattern rules and a table
// of base type names. Unknown names decode as user-defined types.
type TypeDecoder struct {
	Rules []TypeRule
	Names map[string]types.SQLType
}

var (
	typeSuffix = regexp.MustCompile(`\s*\(.*\)|\s+(unsigned|zerofill|signed)\b`)
	typeArgs   = regexp.MustCompile(`\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)`)
)

// Decode maps c onto a TypeInfo, keeping the native spelling.
func (d *TypeDecoder) Decode(c ColumnType) types.TypeInfo {
	native := strings.ToLower(strings.TrimSpace(c.Native))
	for _, r := range d.Rules {
		if r.Pattern.MatchString(native) {
			ti := r.Type
			ti.Native = c.Native
			return ti
		}
	}
	base := strings.TrimSpace(typeSuffix.ReplaceAllString(native, ""))
	t, ok := d.Names[base]
	if !ok {
		return types.TypeInfo{Type: types.SQLUserDefined, Native: c.Native}
	}
	ti := types.TypeInfo{Type: t, Native: c.Native, Unsigned: strings.Contains(native, "unsigned")}
	if c.Length == 0 && c.Precision == 0 {
		c = withArgs(c, native)
	}
	switch t {
	case types.SQLChar, types.SQLVarChar, types.SQLBinary, types.SQLVarBinary:
		ti.Length = int(c.Length)
	case types.SQLDecimal:
		ti.Precision, ti.Scale = int(c.Precision), int(c.Scale)
	}
	return ti
}

// withArgs reads "(n)" or "(p,s)" from the native spelling. Catalogs that
// only report the declared type carry the size there.
func withArgs(c ColumnType, native string) ColumnType {
	m := typeArgs.FindStringSubmatch(native)
	if m == nil {
		return c
	}
	a, _ := strconv.ParseInt(m[1], 10, 64)
	c.Length, c.Precision = a, a
	if m[2] != "" {
		c.Scale, _ = strconv.ParseInt(m[2], 10, 64)
	}
	return c
}
