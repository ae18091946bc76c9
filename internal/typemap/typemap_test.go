package typemap

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/rse/internal/types"
)

func TestBase_RequiresCast(t *testing.T) {
	b := NewBase()
	assert.True(t, b.RequiresCast(types.GUID))
	assert.True(t, b.RequiresCast(types.Interval))
	assert.True(t, b.RequiresCast(types.Bytes))
	assert.False(t, b.RequiresCast(types.Int32))
	assert.False(t, b.RequiresCast(types.DateTime))

	custom := &Base{Casts: map[types.Type]bool{types.Float64: true}}
	assert.True(t, custom.RequiresCast(types.Float64))
	assert.False(t, custom.RequiresCast(types.GUID))
}

func TestBase_Map(t *testing.T) {
	b := NewBase()

	m, err := b.Map(types.UInt64)
	require.NoError(t, err)
	assert.Equal(t, "DECIMAL(20)", m.Column.String())
	assert.Equal(t, DBDecimal, m.Param)

	m, err = b.Map(types.String)
	require.NoError(t, err)
	assert.Equal(t, "VARCHAR(255)", m.Column.String())

	_, err = b.Map(types.Unknown)
	assert.True(t, types.ErrInvalidArgument.Is(err))

	override := &Base{Mappings: map[types.Type]Mapping{types.String: {Column: types.NewTypeInfo(types.SQLText), Param: DBString}}}
	m, err = override.Map(types.String)
	require.NoError(t, err)
	assert.Equal(t, types.SQLText, m.Column.Type)
}

func TestBase_BindRead(t *testing.T) {
	b := NewBase()
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	when := time.Date(2024, 2, 29, 13, 45, 10, 123456000, time.UTC)

	tests := []struct {
		name  string
		typ   types.Type
		host  any
		bound any
		raw   any
		read  any
	}{
		{"bool", types.Bool, true, true, []byte("1"), true},
		{"int16", types.Int16, int16(-7), int64(-7), int64(-7), int16(-7)},
		{"uint32", types.UInt32, uint32(7), int64(7), []byte("7"), uint32(7)},
		{"uint64 above int64", types.UInt64, uint64(18446744073709551615), "18446744073709551615", []byte("18446744073709551615"), uint64(18446744073709551615)},
		{"float64", types.Float64, 1.5, 1.5, []byte("1.5"), 1.5},
		{"decimal", types.Decimal, decimal.RequireFromString("12.340"), "12.34", []byte("12.340"), decimal.RequireFromString("12.340")},
		{"string", types.String, "x", "x", []byte("x"), "x"},
		{"guid", types.GUID, id, id.String(), []byte(id.String()), id},
		{"datetime", types.DateTime, when, when, when, when},
		{"time", types.Time, 13*time.Hour + 45*time.Minute, "13:45:00.000000", []byte("13:45:00.000000"), 13*time.Hour + 45*time.Minute},
		{"interval", types.Interval, 90 * time.Second, int64(90 * time.Second), int64(90 * time.Second), 90 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bound, err := b.Bind(tt.typ, tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.bound, bound)

			read, err := b.Read(tt.typ, tt.raw)
			require.NoError(t, err)
			if d, ok := tt.read.(decimal.Decimal); ok {
				assert.True(t, d.Equal(read.(decimal.Decimal)))
				return
			}
			assert.Equal(t, tt.read, read)
		})
	}
}

func TestBase_Nulls(t *testing.T) {
	b := NewBase()
	v, err := b.Bind(types.GUID, nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = b.Read(types.Int32, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestBase_ConversionErrors(t *testing.T) {
	b := NewBase()

	_, err := b.Bind(types.GUID, 42)
	assert.True(t, types.ErrConversion.Is(err))

	_, err = b.Read(types.Time, "noon")
	assert.True(t, types.ErrConversion.Is(err))

	_, err = b.Bind(types.Bytes, 3)
	assert.True(t, types.ErrConversion.Is(err))
}

func TestGUIDStoredAsStringRoundTrips(t *testing.T) {
	b := NewBase()
	id := uuid.New()

	bound, err := b.Bind(types.GUID, id.String())
	require.NoError(t, err)
	read, err := b.Read(types.GUID, []byte(bound.(string)))
	require.NoError(t, err)
	assert.Equal(t, id, read)

	read, err = b.Read(types.GUID, id[:])
	require.NoError(t, err)
	assert.Equal(t, id, read)
}

func TestFormatTimeOfDay(t *testing.T) {
	assert.Equal(t, "00:00:00.000000", FormatTimeOfDay(0))
	assert.Equal(t, "23:59:59.000000", FormatTimeOfDay(-time.Second))
	assert.Equal(t, "01:00:00.000500", FormatTimeOfDay(25*time.Hour+500*time.Microsecond))
}
