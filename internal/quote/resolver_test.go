package quote

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketValuation/internal/model"
)

func TestResolve_FirstAliasWins(t *testing.T) {
	r := NewResolver(nil)
	row := model.RawRow{"最新价": 10.0, "现价": 20.0}

	v, res, err := r.Resolve(row, FieldLatestPrice)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
	assert.Equal(t, "最新价", res.Column)
	assert.False(t, res.Defaulted)
}

func TestResolve_SecondaryAlias(t *testing.T) {
	r := NewResolver(nil)
	row := model.RawRow{"现价": 3100.5, "涨跌": -10.2, "涨跌幅%": "-0.33%"}

	q, defaulted, err := r.Quote(row)
	require.NoError(t, err)
	assert.Empty(t, defaulted)
	assert.Equal(t, model.Quote{Price: 3100.5, Change: -10.2, ChangePercent: -0.33}, q)
}

func TestResolve_MissingColumnsDefaultToZero(t *testing.T) {
	r := NewResolver(nil)
	row := model.RawRow{"代码": "sh000001", "最新价": 3100.5}

	q, defaulted, err := r.Quote(row)
	require.NoError(t, err)
	assert.Equal(t, model.Quote{Price: 3100.5}, q)
	require.Len(t, defaulted, 2)
	assert.Equal(t, FieldChangeAmount, defaulted[0].Field)
	assert.Equal(t, FieldChangePercent, defaulted[1].Field)
	assert.True(t, defaulted[0].Defaulted)
	assert.Empty(t, defaulted[0].Column)
}

func TestResolve_MalformedValue(t *testing.T) {
	r := NewResolver(nil)
	row := model.RawRow{"最新价": "abc"}

	_, res, err := r.Resolve(row, FieldLatestPrice)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedValue))
	assert.Equal(t, "最新价", res.Column)

	_, _, err = r.Quote(row)
	assert.ErrorIs(t, err, ErrMalformedValue)
}

func TestResolve_NumericKinds(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"float64", 1.5, 1.5},
		{"int", 3, 3},
		{"int64", int64(-4), -4},
		{"json number", json.Number("12.25"), 12.25},
		{"string", " 3125.25 ", 3125.25},
		{"percent string", "0.50%", 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := toFloat(tc.in)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}

	_, err := toFloat(nil)
	assert.ErrorIs(t, err, ErrMalformedValue)
	_, err = toFloat(true)
	assert.ErrorIs(t, err, ErrMalformedValue)
}

func TestResolve_NonFiniteIsMalformed(t *testing.T) {
	for _, v := range []any{
		math.Inf(1),
		math.Inf(-1),
		math.NaN(),
		float32(math.Inf(1)),
		"1e400",
		"-1e400%",
		"NaN",
		json.Number("1e400"),
	} {
		_, err := toFloat(v)
		assert.ErrorIs(t, err, ErrMalformedValue, "%v", v)
	}

	_, _, err := NewResolver(nil).Quote(model.RawRow{"最新价": math.Inf(1), "涨跌额": 1.0, "涨跌幅": 0.1})
	assert.ErrorIs(t, err, ErrMalformedValue)
}

func TestResolve_CustomAliases(t *testing.T) {
	r := NewResolver(AliasTable{FieldLatestPrice: {"price"}})
	v, res, err := r.Resolve(model.RawRow{"最新价": 1.0, "price": 2.0}, FieldLatestPrice)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, "price", res.Column)
}

func TestExtractRow(t *testing.T) {
	table := model.Table{
		{"代码": "sh000300", "最新价": 1.0},
		{"代码": "sh000001", "最新价": 2.0},
		{"代码": "sh000001", "最新价": 3.0},
		{"名称": "无代码"},
	}

	row, err := ExtractRow(table, CodeColumn, "sh000001")
	require.NoError(t, err)
	assert.Equal(t, 2.0, row["最新价"])

	_, err = ExtractRow(table, CodeColumn, "sz399006")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRowNotFound)
	var lookup *LookupError
	require.True(t, errors.As(err, &lookup))
	assert.Equal(t, "sz399006", lookup.Code)
	assert.Equal(t, CodeColumn, lookup.Column)

	_, err = ExtractRow(nil, CodeColumn, "sh000001")
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestExtractRow_NonStringCode(t *testing.T) {
	table := model.Table{{"代码": 300750, "最新价": 1.0}}
	row, err := ExtractRow(table, CodeColumn, "300750")
	require.NoError(t, err)
	assert.Equal(t, 1.0, row["最新价"])
}
