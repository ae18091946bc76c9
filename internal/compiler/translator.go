package compiler

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/sqldom"
	"github.com/coregx/rse/internal/typemap"
	"github.com/coregx/rse/internal/types"
)

// SelectSection is a fixed keyword position of a SELECT statement.
type SelectSection uint8

// Select sections in emission order.
const (
	SectionEntry SelectSection = iota
	SectionDistinct
	SectionFrom
	// SectionDummyFrom follows the select list of a SELECT without a FROM
	// clause that still has a WHERE clause.
	SectionDummyFrom
	SectionWhere
	SectionGroupBy
	SectionHaving
	SectionOrderBy
	SectionExit
)

// Translator spells every SQL fragment of one dialect. It is stateless.
type Translator interface {
	QuoteIdentifier(name string) string
	QuoteString(s string) string
	Literal(v any, t types.Type) (string, error)
	Placeholder(n int) string
	Binary(op expr.BinaryOp, left, right string) (string, error)
	Unary(op expr.UnaryOp, operand string) (string, error)
	Function(fn expr.Function, args []string) (string, error)
	Extract(part expr.DatePart, operand string) (string, error)
	Cast(operand string, t types.Type) (string, error)
	Aggregate(fn expr.AggregateFunc, arg string, distinct bool) string
	Select(section SelectSection) string
	Join(kind sqldom.JoinKind) string
	SetOperation(op sqldom.SetOp, all bool) string
	LimitOffset(limit, offset string) string
	Lock(lock sqldom.Lock) (string, error)
	IndexHint(indexes []string) string
	Comment(text string) string
}

// BaseTranslator is the SQL-92 translator. Dialect translators embed it and
// override the fragments they spell differently.
type BaseTranslator struct {
	// Dialect names the dialect in "not supported" errors.
	Dialect string
	// OpenQuote and CloseQuote delimit identifiers.
	OpenQuote  string
	CloseQuote string
	// BackslashEscapes makes string literals escape backslashes.
	BackslashEscapes bool
	// NumberedPlaceholders spells placeholders $1, $2... instead of ?.
	NumberedPlaceholders bool
}

// NewBaseTranslator returns the SQL-92 translator.
func NewBaseTranslator() *BaseTranslator {
	return &BaseTranslator{Dialect: "sql92", OpenQuote: `"`, CloseQuote: `"`}
}

func (t *BaseTranslator) unsupported(construct string) error {
	return types.ErrNotSupported.New(construct, t.Dialect)
}

// QuoteIdentifier delimits name, doubling embedded closing quotes.
func (t *BaseTranslator) QuoteIdentifier(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	return t.OpenQuote + strings.ReplaceAll(name, t.CloseQuote, t.CloseQuote+t.CloseQuote) + t.CloseQuote
}

// QuoteString returns a string literal. Quotes are doubled, NUL bytes are
// dropped and backslashes are escaped when the dialect treats them as escapes.
func (t *BaseTranslator) QuoteString(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 0:
		case '\'':
			sb.WriteString("''")
		case '\\':
			if t.BackslashEscapes {
				sb.WriteString(`\\`)
			} else {
				sb.WriteByte(c)
			}
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

func (t *BaseTranslator) Placeholder(n int) string {
	if t.NumberedPlaceholders {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Literal formats v as a literal of type t.
func (t *BaseTranslator) Literal(v any, typ types.Type) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	switch typ {
	case types.Bool:
		b, ok := v.(bool)
		if !ok {
			return "", types.ErrConversion.New(v, typ)
		}
		if b {
			return "TRUE", nil
		}
		return "FALSE", nil
	case types.Float32, types.Float64:
		return t.FloatLiteral(v)
	case types.Decimal, types.UInt64:
		d, err := typemap.ToDecimal(v)
		if err != nil {
			return "", err
		}
		return d.String(), nil
	case types.String, types.Char:
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		return t.QuoteString(s), nil
	case types.Bytes:
		b, ok := v.([]byte)
		if !ok {
			return "", types.ErrConversion.New(v, typ)
		}
		return "X'" + strings.ToUpper(hex.EncodeToString(b)) + "'", nil
	case types.GUID:
		u, err := typemap.ToUUID(v)
		if err != nil {
			return "", err
		}
		return t.QuoteString(u.String()), nil
	case types.DateTime:
		ts, err := typemap.ToTime(v)
		if err != nil {
			return "", err
		}
		return "TIMESTAMP " + t.QuoteString(ts.Format(DateTimeLayout)), nil
	case types.DateTimeOffset:
		ts, err := typemap.ToTime(v)
		if err != nil {
			return "", err
		}
		return "TIMESTAMP WITH TIME ZONE " + t.QuoteString(ts.Format(DateTimeLayout+"-07:00")), nil
	case types.Date:
		ts, err := typemap.ToTime(v)
		if err != nil {
			return "", err
		}
		return "DATE " + t.QuoteString(ts.Format(DateLayout)), nil
	case types.Time:
		d, err := typemap.TimeOfDay(v)
		if err != nil {
			return "", err
		}
		return "TIME " + t.QuoteString(typemap.FormatTimeOfDay(d)), nil
	case types.Interval:
		d, err := typemap.ToInterval(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(d), 10), nil
	}
	if typ.IsInteger() || typ == types.Null || typ == types.Unknown {
		switch x := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return fmt.Sprint(x), nil
		case bool, float32, float64, string, time.Time:
			return t.Literal(v, typeOf(v))
		}
	}
	return "", types.ErrConversion.New(v, typ)
}

// FloatLiteral formats a floating point literal. NaN and infinities have no literal.
func (t *BaseTranslator) FloatLiteral(v any) (string, error) {
	var f float64
	switch x := v.(type) {
	case float32:
		f = float64(x)
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	default:
		return "", types.ErrConversion.New(v, types.Float64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", t.unsupported("non-finite float literal")
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s, nil
}

func typeOf(v any) types.Type {
	switch v.(type) {
	case bool:
		return types.Bool
	case float32, float64:
		return types.Float64
	case string:
		return types.String
	case time.Time:
		return types.DateTime
	}
	return types.Unknown
}

var binaryOps = map[expr.BinaryOp]string{
	expr.Add:            "+",
	expr.Subtract:       "-",
	expr.Multiply:       "*",
	expr.Divide:         "/",
	expr.IntDivide:      "/",
	expr.Modulo:         "%",
	expr.Equal:          "=",
	expr.NotEqual:       "<>",
	expr.Less:           "<",
	expr.LessOrEqual:    "<=",
	expr.Greater:        ">",
	expr.GreaterOrEqual: ">=",
	expr.And:            "AND",
	expr.Or:             "OR",
	expr.Concat:         "||",
	expr.Like:           "LIKE",
	expr.BitAnd:         "&",
	expr.BitOr:          "|",
	expr.BitXor:         "#",
}

func (t *BaseTranslator) Binary(op expr.BinaryOp, left, right string) (string, error) {
	s, ok := binaryOps[op]
	if !ok {
		return "", t.unsupported("operator " + op.String())
	}
	return "(" + left + " " + s + " " + right + ")", nil
}

func (t *BaseTranslator) Unary(op expr.UnaryOp, operand string) (string, error) {
	switch op {
	case expr.Not:
		return "(NOT " + operand + ")", nil
	case expr.Negate:
		return "(-" + operand + ")", nil
	case expr.BitNot:
		return "(~" + operand + ")", nil
	case expr.IsNull:
		return "(" + operand + " IS NULL)", nil
	case expr.IsNotNull:
		return "(" + operand + " IS NOT NULL)", nil
	}
	return "", t.unsupported("operator " + op.String())
}

func call(name string, args ...string) string {
	return name + "(" + strings.Join(args, ", ") + ")"
}

// Function spells a primitive function call.
func (t *BaseTranslator) Function(fn expr.Function, args []string) (string, error) {
	switch fn {
	case expr.Abs:
		return call("ABS", args...), nil
	case expr.Ceiling:
		return call("CEILING", args...), nil
	case expr.Floor:
		return call("FLOOR", args...), nil
	case expr.Round:
		return call("ROUND", args...), nil
	case expr.Power:
		return call("POWER", args...), nil
	case expr.Sqrt:
		return call("SQRT", args...), nil
	case expr.Sign:
		return call("SIGN", args...), nil
	case expr.Lower:
		return call("LOWER", args...), nil
	case expr.Upper:
		return call("UPPER", args...), nil
	case expr.Trim:
		return call("TRIM", args...), nil
	case expr.Substring:
		return call("SUBSTRING", args...), nil
	case expr.Replace:
		return call("REPLACE", args...), nil
	case expr.Position:
		return "POSITION(" + args[0] + " IN " + args[1] + ")", nil
	case expr.Length:
		return call("CHAR_LENGTH", args...), nil
	case expr.Coalesce:
		return call("COALESCE", args...), nil
	case expr.Lpad:
		return call("LPAD", args...), nil
	case expr.Rpad:
		return call("RPAD", args...), nil
	case expr.RandomValue:
		return "RANDOM()", nil
	case expr.CurrentDate:
		return "CURRENT_DATE", nil
	case expr.CurrentTimestamp:
		return "CURRENT_TIMESTAMP", nil
	case expr.AddYears:
		return "(" + args[0] + " + (" + args[1] + ") * INTERVAL '1' YEAR)", nil
	case expr.AddMonths:
		return "(" + args[0] + " + (" + args[1] + ") * INTERVAL '1' MONTH)", nil
	case expr.AddDays:
		return "(" + args[0] + " + (" + args[1] + ") * INTERVAL '1' DAY)", nil
	case expr.AddMicroseconds:
		return "(" + args[0] + " + (" + args[1] + ") * INTERVAL '0.000001' SECOND)", nil
	case expr.DiffDays:
		return "(CAST(" + args[0] + " AS DATE) - CAST(" + args[1] + " AS DATE))", nil
	case expr.DiffMicroseconds:
		return "CAST(EXTRACT(EPOCH FROM (" + args[1] + " - " + args[0] + ")) * 1000000 AS BIGINT)", nil
	case expr.SecondsOfDay:
		return "CAST(EXTRACT(EPOCH FROM " + args[0] + ") AS BIGINT)", nil
	case expr.SecondsToTime:
		return "(TIME '00:00:00' + (" + args[0] + ") * INTERVAL '1' SECOND)", nil
	case expr.TruncToInt:
		return call("TRUNC", args...), nil
	case expr.ConcatStrings:
		return "(" + strings.Join(args, " || ") + ")", nil
	case expr.DateOf:
		return "CAST(" + args[0] + " AS DATE)", nil
	}
	return "", t.unsupported("function " + fn.String())
}

func (t *BaseTranslator) Extract(part expr.DatePart, operand string) (string, error) {
	field := ""
	switch part {
	case expr.Year:
		field = "YEAR"
	case expr.Month:
		field = "MONTH"
	case expr.Day:
		field = "DAY"
	case expr.Hour:
		field = "HOUR"
	case expr.Minute:
		field = "MINUTE"
	case expr.Second:
		return "CAST(FLOOR(EXTRACT(SECOND FROM " + operand + ")) AS INTEGER)", nil
	case expr.Millisecond:
		return "(CAST(FLOOR(EXTRACT(MILLISECONDS FROM " + operand + ")) AS INTEGER) % 1000)", nil
	case expr.DayOfWeek:
		field = "DOW"
	case expr.DayOfYear:
		field = "DOY"
	default:
		return "", t.unsupported("date part " + part.String())
	}
	return "CAST(EXTRACT(" + field + " FROM " + operand + ") AS INTEGER)", nil
}

var castTypes = map[types.Type]string{
	types.Bool:           "BOOLEAN",
	types.Int8:           "SMALLINT",
	types.UInt8:          "SMALLINT",
	types.Int16:          "SMALLINT",
	types.UInt16:         "INTEGER",
	types.Int32:          "INTEGER",
	types.UInt32:         "BIGINT",
	types.Int64:          "BIGINT",
	types.UInt64:         "NUMERIC(20, 0)",
	types.Float32:        "REAL",
	types.Float64:        "DOUBLE PRECISION",
	types.Decimal:        "NUMERIC",
	types.String:         "VARCHAR",
	types.Char:           "CHAR(1)",
	types.Bytes:          "BYTEA",
	types.GUID:           "UUID",
	types.DateTime:       "TIMESTAMP",
	types.DateTimeOffset: "TIMESTAMP WITH TIME ZONE",
	types.Date:           "DATE",
	types.Time:           "TIME",
	types.Interval:       "BIGINT",
}

func (t *BaseTranslator) Cast(operand string, typ types.Type) (string, error) {
	name, ok := castTypes[typ]
	if !ok {
		return "", t.unsupported("cast to " + typ.String())
	}
	return "CAST(" + operand + " AS " + name + ")", nil
}

func (t *BaseTranslator) Aggregate(fn expr.AggregateFunc, arg string, distinct bool) string {
	name := strings.ToUpper(fn.String())
	if arg == "" {
		return name + "(*)"
	}
	if distinct {
		return name + "(DISTINCT " + arg + ")"
	}
	return name + "(" + arg + ")"
}

func (t *BaseTranslator) Select(section SelectSection) string {
	switch section {
	case SectionEntry:
		return "SELECT"
	case SectionDistinct:
		return "DISTINCT"
	case SectionFrom:
		return "FROM"
	case SectionWhere:
		return "WHERE"
	case SectionGroupBy:
		return "GROUP BY"
	case SectionHaving:
		return "HAVING"
	case SectionOrderBy:
		return "ORDER BY"
	}
	return ""
}

func (t *BaseTranslator) Join(kind sqldom.JoinKind) string {
	return kind.String()
}

func (t *BaseTranslator) SetOperation(op sqldom.SetOp, all bool) string {
	if all {
		return op.String() + " ALL"
	}
	return op.String()
}

// LimitOffset spells LIMIT/OFFSET. Empty arguments are omitted.
func (t *BaseTranslator) LimitOffset(limit, offset string) string {
	switch {
	case limit != "" && offset != "":
		return "LIMIT " + limit + " OFFSET " + offset
	case limit != "":
		return "LIMIT " + limit
	case offset != "":
		return "OFFSET " + offset
	}
	return ""
}

func (t *BaseTranslator) Lock(lock sqldom.Lock) (string, error) {
	s := "FOR UPDATE"
	if lock.Mode == sqldom.LockShared {
		s = "FOR SHARE"
	}
	switch lock.Behavior {
	case sqldom.LockNoWait:
		s += " NOWAIT"
	case sqldom.LockSkipLocked:
		s += " SKIP LOCKED"
	}
	return s, nil
}

func (t *BaseTranslator) IndexHint([]string) string { return "" }

func (t *BaseTranslator) Comment(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	return "/* " + strings.ReplaceAll(text, "*/", "* /") + " */"
}

// Layouts of temporal literals.
const (
	DateTimeLayout = "2006-01-02 15:04:05.999999"
	DateLayout     = "2006-01-02"
)
