package compiler

import (
	"time"

	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/types"
)

// Epoch anchors date construction and time-of-day conversion.
var Epoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

func i64(n int64) expr.Literal { return expr.Lit(n, types.Int64) }

func bin(op expr.BinaryOp, l, r expr.Expr) expr.Binary {
	return expr.Binary{Op: op, Left: l, Right: r}
}

// Lower rewrites a generic node into primitives. It leaves primitive nodes
// unchanged and is meant to be used with expr.Rewrite.
func Lower(e expr.Expr) (expr.Expr, bool, error) {
	switch x := e.(type) {
	case expr.Unary:
		if x.Op == expr.BitNot {
			// ~x == -x - 1 in two's complement.
			return bin(expr.Subtract, expr.Unary{Op: expr.Negate, Operand: x.Operand}, i64(1)), true, nil
		}
	case expr.Call:
		if x.Func.IsGeneric() {
			out, err := lowerCall(x)
			if err != nil {
				return nil, false, err
			}
			return out, true, nil
		}
	}
	return e, false, nil
}

func lowerCall(c expr.Call) (expr.Expr, error) {
	a := c.Args
	switch c.Func {
	case expr.Truncate:
		return expr.Fn(expr.TruncToInt, a[0]), nil
	case expr.ConcatAll:
		return expr.Fn(expr.ConcatStrings, a...), nil
	case expr.PadLeft:
		return pad(expr.Lpad, a), nil
	case expr.PadRight:
		return pad(expr.Rpad, a), nil
	case expr.CharLength:
		return expr.Fn(expr.Length, a[0]), nil
	case expr.Random:
		return expr.Fn(expr.RandomValue), nil
	case expr.Square:
		return expr.Fn(expr.Power, a[0], expr.Lit(int32(2), types.Int32)), nil
	case expr.DateTimeAddInterval:
		return AddInterval(a[0], a[1]), nil
	case expr.DateTimeSubtractInterval:
		return AddInterval(a[0], expr.Unary{Op: expr.Negate, Operand: a[1]}), nil
	case expr.DateTimeSubtractDateTime:
		days := expr.Fn(expr.DiffDays, a[0], a[1])
		micros := expr.Fn(expr.DiffMicroseconds, expr.Fn(expr.AddDays, a[1], days), a[0])
		return bin(expr.Add,
			bin(expr.Multiply, days, i64(types.NanosecondsPerDay)),
			bin(expr.Multiply, micros, i64(types.NanosecondsPerMicrosecond))), nil
	case expr.TimeAddInterval:
		return timeShift(expr.Add, a[0], a[1]), nil
	case expr.TimeSubtractInterval:
		return timeShift(expr.Subtract, a[0], a[1]), nil
	case expr.TimeSubtractTime:
		diff := bin(expr.Subtract, expr.Fn(expr.SecondsOfDay, a[0]), expr.Fn(expr.SecondsOfDay, a[1]))
		return bin(expr.Multiply, wrapDay(diff), i64(types.NanosecondsPerSecond)), nil
	case expr.DateConstruct:
		return expr.Fn(expr.DateOf, construct(expr.Lit(Epoch, types.Date), a)), nil
	case expr.DateTimeConstruct:
		return construct(expr.Lit(Epoch, types.DateTime), a), nil
	case expr.TimeToDateTime:
		micros := bin(expr.Multiply, expr.Fn(expr.SecondsOfDay, a[0]), i64(1000000))
		return expr.Fn(expr.AddMicroseconds, expr.Lit(Epoch, types.DateTime), micros), nil
	case expr.IntervalToNanoseconds, expr.IntervalConstruct:
		return a[0], nil
	case expr.IntervalToMilliseconds:
		return bin(expr.IntDivide, a[0], i64(types.NanosecondsPerMillisecond)), nil
	case expr.DateTimeTruncate:
		return expr.Cast{Operand: expr.Fn(expr.DateOf, a[0]), To: a[0].Type()}, nil
	}
	return nil, types.ErrInvalidArgument.New("function", c.Func.String()+" has no lowering")
}

// pad keeps strings already at least n characters long; native LPAD and RPAD
// would truncate them.
func pad(fn expr.Function, a []expr.Expr) expr.Expr {
	filler := expr.Expr(expr.Lit(" ", types.String))
	if len(a) > 2 {
		filler = a[2]
	}
	return expr.Case{
		Whens: []expr.When{{
			Cond: bin(expr.GreaterOrEqual, expr.Fn(expr.Length, a[0]), a[1]),
			Then: a[0],
		}},
		Else: expr.Fn(fn, a[0], a[1], filler),
	}
}

// AddInterval adds an interval in nanoseconds to a date-time. The interval is
// split into whole days and a remainder of at most half a day in magnitude, so
// the microsecond addition stays far from integer overflow in every dialect.
// A remainder of exactly plus or minus half a day is not rounded to a day; it
// is added as microseconds.
func AddInterval(dt, iv expr.Expr) expr.Expr {
	day := i64(types.NanosecondsPerDay)
	half := types.NanosecondsPerDay / 2
	r := bin(expr.Modulo, iv, day)
	adj := expr.Case{
		Whens: []expr.When{
			{Cond: bin(expr.Greater, r, i64(half)), Then: day},
			{Cond: bin(expr.Less, r, i64(-half)), Then: i64(-types.NanosecondsPerDay)},
		},
		Else: i64(0),
	}
	days := bin(expr.IntDivide, bin(expr.Add, bin(expr.Subtract, iv, r), adj), day)
	micros := bin(expr.IntDivide, bin(expr.Subtract, r, adj), i64(types.NanosecondsPerMicrosecond))
	return expr.Fn(expr.AddMicroseconds, expr.Fn(expr.AddDays, dt, days), micros)
}

func timeShift(op expr.BinaryOp, t, iv expr.Expr) expr.Expr {
	secs := bin(op, expr.Fn(expr.SecondsOfDay, t), bin(expr.IntDivide, iv, i64(types.NanosecondsPerSecond)))
	return expr.Fn(expr.SecondsToTime, wrapDay(secs))
}

// wrapDay maps a second count into [0, 86400).
func wrapDay(secs expr.Expr) expr.Expr {
	d := i64(types.SecondsPerDay)
	return bin(expr.Modulo, bin(expr.Add, bin(expr.Modulo, secs, d), d), d)
}

func construct(epoch expr.Literal, a []expr.Expr) expr.Expr {
	years := bin(expr.Subtract, a[0], i64(int64(Epoch.Year())))
	months := bin(expr.Subtract, a[1], i64(1))
	days := bin(expr.Subtract, a[2], i64(1))
	return expr.Fn(expr.AddDays, expr.Fn(expr.AddMonths, expr.Fn(expr.AddYears, epoch, years), months), days)
}
