package expr

import (
	"fmt"

	"github.com/coregx/rse/internal/types"
)

// Function identifies a scalar function.
//
// Generic functions describe host semantics and are lowered by the compiler
// into trees of primitive functions before emission. Primitive functions map
// one-to-one onto a native SQL spelling supplied by the dialect translator.
type Function uint8

// Generic functions.
const (
	// Truncate drops the fractional part of a number.
	Truncate Function = iota
	// ConcatAll concatenates strings.
	ConcatAll
	// PadLeft pads a string on the left to a length; longer strings are kept.
	PadLeft
	// PadRight pads a string on the right to a length; longer strings are kept.
	PadRight
	// CharLength counts characters.
	CharLength
	// Random returns a float in [0, 1).
	Random
	// Square multiplies a number by itself.
	Square
	DateTimeAddInterval
	DateTimeSubtractInterval
	// DateTimeSubtractDateTime returns the interval between two date-times.
	DateTimeSubtractDateTime
	TimeAddInterval
	TimeSubtractInterval
	// TimeSubtractTime returns the non-negative interval from the second time of day to the first.
	TimeSubtractTime
	// DateConstruct builds a date from year, month and day.
	DateConstruct
	// DateTimeConstruct builds a date-time at midnight from year, month and day.
	DateTimeConstruct
	// TimeToDateTime places a time of day on a date.
	TimeToDateTime
	IntervalToNanoseconds
	IntervalToMilliseconds
	// IntervalConstruct builds an interval from nanoseconds.
	IntervalConstruct
	// DateTimeTruncate drops the time of day.
	DateTimeTruncate

	// firstPrimitive is the first primitive function.
	firstPrimitive
)

// Primitive functions.
const (
	Abs Function = firstPrimitive + iota
	Ceiling
	Floor
	Round
	Power
	Sqrt
	Sign
	Lower
	Upper
	Trim
	Substring
	Replace
	// Position returns the one-based position of the first argument in the second, 0 if absent.
	Position
	Length
	Coalesce
	Lpad
	Rpad
	RandomValue
	CurrentDate
	CurrentTimestamp
	AddYears
	AddMonths
	AddDays
	AddMicroseconds
	// DiffDays returns the whole days from the second date to the first.
	DiffDays
	// DiffMicroseconds returns the microseconds from the first date-time to the second.
	DiffMicroseconds
	// SecondsOfDay returns the seconds since midnight of a time of day.
	SecondsOfDay
	// SecondsToTime returns the time of day at the given seconds since midnight.
	SecondsToTime
	// TruncToInt truncates a number toward zero.
	TruncToInt
	// ConcatStrings is the native string concatenation.
	ConcatStrings
	// DateOf returns the date part of a date-time.
	DateOf

	lastFunction
)

type funcInfo struct {
	name    string
	minArgs int
	maxArgs int // -1 for variadic
	result  func(args []Expr) types.Type
}

func fixed(t types.Type) func([]Expr) types.Type {
	return func([]Expr) types.Type { return t }
}

func firstArg(args []Expr) types.Type {
	if len(args) == 0 {
		return types.Unknown
	}
	return args[0].Type()
}

func coalesced(args []Expr) types.Type {
	for _, a := range args {
		if t := a.Type(); t != types.Null {
			return t
		}
	}
	return types.Null
}

var functions = [lastFunction]funcInfo{
	Truncate:                 {"Truncate", 1, 1, firstArg},
	ConcatAll:                {"Concat", 1, -1, fixed(types.String)},
	PadLeft:                  {"PadLeft", 2, 3, fixed(types.String)},
	PadRight:                 {"PadRight", 2, 3, fixed(types.String)},
	CharLength:               {"CharLength", 1, 1, fixed(types.Int32)},
	Random:                   {"Random", 0, 0, fixed(types.Float64)},
	Square:                   {"Square", 1, 1, firstArg},
	DateTimeAddInterval:      {"DateTimeAddInterval", 2, 2, firstArg},
	DateTimeSubtractInterval: {"DateTimeSubtractInterval", 2, 2, firstArg},
	DateTimeSubtractDateTime: {"DateTimeSubtractDateTime", 2, 2, fixed(types.Interval)},
	TimeAddInterval:          {"TimeAddInterval", 2, 2, fixed(types.Time)},
	TimeSubtractInterval:     {"TimeSubtractInterval", 2, 2, fixed(types.Time)},
	TimeSubtractTime:         {"TimeSubtractTime", 2, 2, fixed(types.Interval)},
	DateConstruct:            {"DateConstruct", 3, 3, fixed(types.Date)},
	DateTimeConstruct:        {"DateTimeConstruct", 3, 3, fixed(types.DateTime)},
	TimeToDateTime:           {"TimeToDateTime", 1, 1, fixed(types.DateTime)},
	IntervalToNanoseconds:    {"IntervalToNanoseconds", 1, 1, fixed(types.Int64)},
	IntervalToMilliseconds:   {"IntervalToMilliseconds", 1, 1, fixed(types.Int64)},
	IntervalConstruct:        {"IntervalConstruct", 1, 1, fixed(types.Interval)},
	DateTimeTruncate:         {"DateTimeTruncate", 1, 1, firstArg},

	Abs:              {"Abs", 1, 1, firstArg},
	Ceiling:          {"Ceiling", 1, 1, firstArg},
	Floor:            {"Floor", 1, 1, firstArg},
	Round:            {"Round", 1, 2, firstArg},
	Power:            {"Power", 2, 2, fixed(types.Float64)},
	Sqrt:             {"Sqrt", 1, 1, fixed(types.Float64)},
	Sign:             {"Sign", 1, 1, fixed(types.Int32)},
	Lower:            {"Lower", 1, 1, fixed(types.String)},
	Upper:            {"Upper", 1, 1, fixed(types.String)},
	Trim:             {"Trim", 1, 1, fixed(types.String)},
	Substring:        {"Substring", 2, 3, fixed(types.String)},
	Replace:          {"Replace", 3, 3, fixed(types.String)},
	Position:         {"Position", 2, 2, fixed(types.Int32)},
	Length:           {"Length", 1, 1, fixed(types.Int32)},
	Coalesce:         {"Coalesce", 1, -1, coalesced},
	Lpad:             {"Lpad", 3, 3, fixed(types.String)},
	Rpad:             {"Rpad", 3, 3, fixed(types.String)},
	RandomValue:      {"RandomValue", 0, 0, fixed(types.Float64)},
	CurrentDate:      {"CurrentDate", 0, 0, fixed(types.Date)},
	CurrentTimestamp: {"CurrentTimestamp", 0, 0, fixed(types.DateTime)},
	AddYears:         {"AddYears", 2, 2, firstArg},
	AddMonths:        {"AddMonths", 2, 2, firstArg},
	AddDays:          {"AddDays", 2, 2, firstArg},
	AddMicroseconds:  {"AddMicroseconds", 2, 2, firstArg},
	DiffDays:         {"DiffDays", 2, 2, fixed(types.Int64)},
	DiffMicroseconds: {"DiffMicroseconds", 2, 2, fixed(types.Int64)},
	SecondsOfDay:     {"SecondsOfDay", 1, 1, fixed(types.Int64)},
	SecondsToTime:    {"SecondsToTime", 1, 1, fixed(types.Time)},
	TruncToInt:       {"TruncToInt", 1, 1, firstArg},
	ConcatStrings:    {"ConcatStrings", 1, -1, fixed(types.String)},
	DateOf:           {"DateOf", 1, 1, fixed(types.Date)},
}

func (f Function) String() string {
	if f < lastFunction {
		return functions[f].name
	}
	return fmt.Sprintf("Function(%d)", uint8(f))
}

// IsGeneric reports whether f must be lowered before emission.
func (f Function) IsGeneric() bool { return f < firstPrimitive }

func (f Function) valid() bool { return f < lastFunction }

// checkArity returns an error unless n arguments fit f.
func (f Function) checkArity(n int) error {
	if !f.valid() {
		return types.ErrInvalidArgument.New("function", f.String())
	}
	info := functions[f]
	if n < info.minArgs || (info.maxArgs >= 0 && n > info.maxArgs) {
		return types.ErrInvalidArgument.New(info.name, fmt.Sprintf("got %d arguments", n))
	}
	return nil
}

// Call applies Func to Args.
type Call struct {
	Func Function
	Args []Expr
}

func (Call) exprNode() {}

func (c Call) Type() types.Type {
	if !c.Func.valid() {
		return types.Unknown
	}
	return functions[c.Func].result(c.Args)
}

func (c Call) String() string { return fmt.Sprintf("%s(%s)", c.Func, joinExprs(c.Args)) }

// Fn returns a call of f over args.
func Fn(f Function, args ...Expr) Call { return Call{Func: f, Args: args} }

// NewCall returns a call of f over args after checking the argument count.
func NewCall(f Function, args ...Expr) (Call, error) {
	if err := f.checkArity(len(args)); err != nil {
		return Call{}, err
	}
	for i, a := range args {
		if a == nil {
			return Call{}, types.ErrInvalidArgument.New(f.String(), fmt.Sprintf("argument %d is nil", i))
		}
	}
	return Fn(f, args...), nil
}
