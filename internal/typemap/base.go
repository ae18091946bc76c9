package typemap

import (
	"strconv"

	"github.com/spf13/cast"

	"github.com/coregx/rse/internal/types"
)

// Base is the SQL-92 mapper. Dialect mappers embed it and override what differs.
type Base struct {
	// Casts lists the types whose parameters need an explicit cast.
	Casts map[types.Type]bool
	// Mappings overrides the default mapping per type.
	Mappings map[types.Type]Mapping
}

var baseCasts = map[types.Type]bool{
	types.GUID:     true,
	types.Interval: true,
	types.Bytes:    true,
}

var baseMappings = map[types.Type]Mapping{
	types.Bool:           {types.NewTypeInfo(types.SQLBoolean), DBBoolean},
	types.Int8:           {types.NewTypeInfo(types.SQLSmallInt), DBSByte},
	types.UInt8:          {types.NewTypeInfo(types.SQLSmallInt), DBByte},
	types.Int16:          {types.NewTypeInfo(types.SQLSmallInt), DBInt16},
	types.UInt16:         {types.NewTypeInfo(types.SQLInteger), DBUInt16},
	types.Int32:          {types.NewTypeInfo(types.SQLInteger), DBInt32},
	types.UInt32:         {types.NewTypeInfo(types.SQLBigInt), DBUInt32},
	types.Int64:          {types.NewTypeInfo(types.SQLBigInt), DBInt64},
	types.UInt64:         {types.NewTypeInfo(types.SQLDecimal).WithPrecision(20, 0), DBDecimal},
	types.Float32:        {types.NewTypeInfo(types.SQLFloat), DBSingle},
	types.Float64:        {types.NewTypeInfo(types.SQLDouble), DBDouble},
	types.Decimal:        {types.NewTypeInfo(types.SQLDecimal).WithPrecision(28, 10), DBDecimal},
	types.String:         {types.NewTypeInfo(types.SQLVarChar).WithLength(255), DBString},
	types.Char:           {types.NewTypeInfo(types.SQLChar).WithLength(1), DBStringFixedLength},
	types.Bytes:          {types.NewTypeInfo(types.SQLVarBinary).WithLength(255), DBBinary},
	types.GUID:           {types.NewTypeInfo(types.SQLGUID), DBGuid},
	types.DateTime:       {types.NewTypeInfo(types.SQLDateTime), DBDateTime},
	types.DateTimeOffset: {types.NewTypeInfo(types.SQLDateTimeOffset), DBDateTimeOffset},
	types.Date:           {types.NewTypeInfo(types.SQLDate), DBDate},
	types.Time:           {types.NewTypeInfo(types.SQLTime), DBTime},
	types.Interval:       {types.NewTypeInfo(types.SQLBigInt), DBInt64},
}

// NewBase returns the SQL-92 mapper.
func NewBase() *Base {
	return &Base{}
}

func (b *Base) RequiresCast(t types.Type) bool {
	if b.Casts != nil {
		return b.Casts[t]
	}
	return baseCasts[t]
}

func (b *Base) Map(t types.Type) (Mapping, error) {
	if m, ok := b.Mappings[t]; ok {
		return m, nil
	}
	if m, ok := baseMappings[t]; ok {
		return m, nil
	}
	return Mapping{}, types.ErrInvalidArgument.New("type", t.String()+" has no default mapping")
}

func (b *Base) Bind(t types.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case t == types.Bool:
		return cast.ToBoolE(v)
	case t == types.UInt64:
		n, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		return strconv.FormatUint(n, 10), nil
	case t.IsUnsigned():
		n, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		return int64(n), nil
	case t.IsInteger():
		return cast.ToInt64E(text(v))
	case t.IsFloat():
		return cast.ToFloat64E(text(v))
	}
	switch t {
	case types.Decimal:
		d, err := ToDecimal(v)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	case types.String, types.Char:
		return cast.ToStringE(v)
	case types.Bytes:
		switch x := v.(type) {
		case []byte:
			return append([]byte(nil), x...), nil
		case string:
			return []byte(x), nil
		}
	case types.GUID:
		u, err := ToUUID(v)
		if err != nil {
			return nil, err
		}
		return u.String(), nil
	case types.DateTime, types.DateTimeOffset, types.Date:
		return ToTime(v)
	case types.Time:
		d, err := TimeOfDay(v)
		if err != nil {
			return nil, err
		}
		return FormatTimeOfDay(d), nil
	case types.Interval:
		d, err := ToInterval(v)
		if err != nil {
			return nil, err
		}
		return int64(d), nil
	}
	return nil, types.ErrConversion.New(v, t)
}

func (b *Base) Read(t types.Type, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch t {
	case types.Bool:
		return cast.ToBoolE(text(raw))
	case types.Int8:
		return cast.ToInt8E(text(raw))
	case types.Int16:
		return cast.ToInt16E(text(raw))
	case types.Int32:
		return cast.ToInt32E(text(raw))
	case types.Int64:
		return cast.ToInt64E(text(raw))
	case types.UInt8:
		return cast.ToUint8E(text(raw))
	case types.UInt16:
		return cast.ToUint16E(text(raw))
	case types.UInt32:
		return cast.ToUint32E(text(raw))
	case types.UInt64:
		return toUint64(raw)
	case types.Float32:
		return cast.ToFloat32E(text(raw))
	case types.Float64:
		return cast.ToFloat64E(text(raw))
	case types.Decimal:
		return ToDecimal(raw)
	case types.String, types.Char:
		return cast.ToStringE(text(raw))
	case types.Bytes:
		switch x := raw.(type) {
		case []byte:
			return append([]byte(nil), x...), nil
		case string:
			return []byte(x), nil
		}
	case types.GUID:
		return ToUUID(raw)
	case types.DateTime, types.DateTimeOffset, types.Date:
		return ToTime(raw)
	case types.Time:
		return TimeOfDay(raw)
	case types.Interval:
		return ToInterval(raw)
	}
	return nil, types.ErrConversion.New(raw, t)
}
