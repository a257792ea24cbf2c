package quote

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketValuation/internal/model"
)

type fakeProvider struct {
	domestic, us, hk          model.Table
	domErr, usErr, hkErr      error
	domCalls, usCalls, hkCalls int
}

func (f *fakeProvider) DomesticSpot(context.Context) (model.Table, error) {
	f.domCalls++
	return f.domestic, f.domErr
}

func (f *fakeProvider) USSpot(context.Context) (model.Table, error) {
	f.usCalls++
	return f.us, f.usErr
}

func (f *fakeProvider) HKSpot(context.Context) (model.Table, error) {
	f.hkCalls++
	return f.hk, f.hkErr
}

func liveProvider() *fakeProvider {
	return &fakeProvider{
		domestic: model.Table{
			{"代码": "sh000001", "名称": "上证指数", "最新价": 3100.5, "涨跌额": -10.2, "涨跌幅": -0.33},
			{"代码": "sh000300", "名称": "沪深300", "最新价": 3900.0, "涨跌额": 12.0, "涨跌幅": 0.31},
			{"代码": "sz399001", "名称": "深证成指", "最新价": 9800.1, "涨跌额": 1.1, "涨跌幅": 0.01},
			{"代码": "sz399006", "名称": "创业板指", "最新价": 1900.0, "涨跌额": -2.0, "涨跌幅": -0.1},
		},
		us: model.Table{
			{"代码": "IXIC", "现价": 15000.0, "涨跌": 100.0, "涨跌幅%": 0.67},
			{"代码": "DJI", "现价": 38000.0, "涨跌": -50.0, "涨跌幅%": -0.13},
			{"代码": "SPX", "现价": 5000.0, "涨跌": 10.0, "涨跌幅%": 0.2},
		},
		hk: model.Table{
			{"代码": "HSI", "最新价": 17000.0, "涨跌额": 30.0, "涨跌幅": 0.18},
		},
	}
}

func codes(records []model.IndexRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Code)
	}
	return out
}

func TestDomestic_Live(t *testing.T) {
	p := liveProvider()
	res := NewDomestic(p, nil).Fetch(context.Background())

	assert.Equal(t, SourceLive, res.Source)
	assert.NoError(t, res.Reason)
	assert.Equal(t, []string{"sh000001", "sh000300", "sz399001", "sz399006"}, codes(res.Records))
	assert.Equal(t, model.IndexRecord{
		Code: "sh000001", Name: "上证指数",
		Price: 3100.5, Change: -10.2, ChangePercent: -0.33,
		Valuation: 35, ValuationLevel: model.LevelUnder, ValuationColor: model.ColorLoss,
	}, res.Records[0])
	assert.Equal(t, 1, p.domCalls)
}

func TestDomestic_MissingRowFallsBack(t *testing.T) {
	p := &fakeProvider{domestic: model.Table{
		{"代码": "sh000001", "最新价": 3100.5, "涨跌额": -10.2, "涨跌幅": -0.33},
	}}
	res := NewDomestic(p, nil).Fetch(context.Background())

	assert.Equal(t, SourceFallback, res.Source)
	assert.ErrorIs(t, res.Reason, ErrRowNotFound)
	assert.Equal(t, DomesticFallback(), res.Records)
	// 已取到的一行也不保留
	assert.Equal(t, 3125.25, res.Records[0].Price)
}

func TestDomestic_ProviderErrorFallsBack(t *testing.T) {
	boom := errors.New("connection refused")
	res := NewDomestic(&fakeProvider{domErr: boom}, nil).Fetch(context.Background())

	assert.Equal(t, SourceFallback, res.Source)
	assert.ErrorIs(t, res.Reason, boom)
	assert.Equal(t, DomesticFallback(), res.Records)
}

func TestDomestic_NilProvider(t *testing.T) {
	res := NewDomestic(nil, nil).Fetch(context.Background())
	assert.Equal(t, SourceFallback, res.Source)
	assert.Error(t, res.Reason)
	assert.Len(t, res.Records, 4)
}

func TestDomestic_MalformedValueFallsBack(t *testing.T) {
	p := liveProvider()
	p.domestic[2]["最新价"] = "N/A"
	res := NewDomestic(p, nil).Fetch(context.Background())

	assert.Equal(t, SourceFallback, res.Source)
	assert.ErrorIs(t, res.Reason, ErrMalformedValue)
}

func TestDomestic_MissingColumnsDefaulted(t *testing.T) {
	p := liveProvider()
	delete(p.domestic[0], "涨跌额")
	delete(p.domestic[0], "涨跌幅")
	res := NewDomestic(p, nil).Fetch(context.Background())

	require.Equal(t, SourceLive, res.Source)
	assert.Equal(t, 3100.5, res.Records[0].Price)
	assert.Zero(t, res.Records[0].Change)
	assert.Zero(t, res.Records[0].ChangePercent)
	require.Len(t, res.Defaulted, 2)
	assert.Equal(t, "sh000001", res.Defaulted[0].Code)
}

func TestInternational_Live(t *testing.T) {
	p := liveProvider()
	res := NewInternational(p, nil).Fetch(context.Background())

	assert.Equal(t, SourceLive, res.Source)
	assert.Equal(t, []string{"nasdaq", "dowjones", "sp500", "hangseng"}, codes(res.Records))
	assert.Equal(t, "纳斯达克", res.Records[0].Name)
	assert.Equal(t, 15000.0, res.Records[0].Price)
	assert.Equal(t, 17000.0, res.Records[3].Price)
	assert.Equal(t, 1, p.usCalls)
	assert.Equal(t, 1, p.hkCalls)
}

func TestInternational_HKFailureDropsUS(t *testing.T) {
	p := liveProvider()
	p.hkErr = errors.New("timeout")
	res := NewInternational(p, nil).Fetch(context.Background())

	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, InternationalFallback(), res.Records)
	assert.Equal(t, 14823.45, res.Records[0].Price)
	assert.Equal(t, 16825.30, res.Records[3].Price)
}

func TestSourceString(t *testing.T) {
	var zero Result
	assert.Equal(t, SourceUnknown, zero.Source)
	assert.Equal(t, "unknown", SourceUnknown.String())
	assert.Equal(t, "live", SourceLive.String())
	assert.Equal(t, "partial", SourcePartial.String())
	assert.Equal(t, "fallback", SourceFallback.String())
	assert.Equal(t, "source(9)", Source(9).String())
}

func TestCatalog(t *testing.T) {
	all := AllInstruments()
	require.Len(t, all, 8)
	assert.Equal(t, []string{
		"sh000001", "sh000300", "sz399001", "sz399006",
		"nasdaq", "dowjones", "sp500", "hangseng",
	}, codes(CombinedFallback()))

	// 估值三元组与等级颜色对应
	for _, in := range all {
		switch in.Valuation.Level {
		case model.LevelUnder:
			assert.Equal(t, model.ColorLoss, in.Valuation.Color, in.Code)
		case model.LevelNormal:
			assert.Equal(t, model.ColorNormal, in.Valuation.Color, in.Code)
		case model.LevelOver:
			assert.Equal(t, model.ColorGain, in.Valuation.Color, in.Code)
		default:
			t.Fatalf("unexpected level %q for %s", in.Valuation.Level, in.Code)
		}
	}

	d := DomesticInstruments()
	d[0].Name = "changed"
	assert.Equal(t, "上证指数", DomesticInstruments()[0].Name)
}
