package quote

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketValuation/internal/model"
)

type fetcherFunc func(ctx context.Context) Result

func (f fetcherFunc) Fetch(ctx context.Context) Result { return f(ctx) }

var allCodes = []string{
	"sh000001", "sh000300", "sz399001", "sz399006",
	"nasdaq", "dowjones", "sp500", "hangseng",
}

func TestFetchAll_Live(t *testing.T) {
	res := New(liveProvider()).FetchAll(context.Background())

	assert.Equal(t, SourceLive, res.Source)
	assert.Equal(t, MarketAll, res.Market)
	assert.NoError(t, res.Reason)
	assert.Equal(t, allCodes, codes(res.Records))
}

func TestFetchAll_Partial(t *testing.T) {
	p := liveProvider()
	p.usErr = errors.New("503")
	res := New(p).FetchAll(context.Background())

	assert.Equal(t, SourcePartial, res.Source)
	assert.Error(t, res.Reason)
	assert.Equal(t, allCodes, codes(res.Records))
	assert.Equal(t, 3100.5, res.Records[0].Price)
	assert.Equal(t, InternationalFallback(), res.Records[4:])
}

func TestFetchAll_BothFallback(t *testing.T) {
	p := &fakeProvider{domErr: errors.New("down"), usErr: errors.New("down"), hkErr: errors.New("down")}
	res := New(p).FetchAll(context.Background())

	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, CombinedFallback(), res.Records)
}

func TestFetchAll_DomesticPanic(t *testing.T) {
	intlCalled := false
	agg := NewAggregator(
		fetcherFunc(func(context.Context) Result { panic("boom") }),
		fetcherFunc(func(ctx context.Context) Result {
			intlCalled = true
			return NewInternational(liveProvider(), nil).Fetch(ctx)
		}),
	)
	res := agg.FetchAll(context.Background())

	assert.Equal(t, SourceFallback, res.Source)
	assert.ErrorIs(t, res.Reason, ErrFetcherFault)
	assert.Equal(t, CombinedFallback(), res.Records)
	assert.False(t, intlCalled)
}

func TestFetchAll_InternationalPanicDiscardsLiveDomestic(t *testing.T) {
	agg := NewAggregator(
		NewDomestic(liveProvider(), nil),
		fetcherFunc(func(context.Context) Result { panic(errors.New("nil map")) }),
	)
	res := agg.FetchAll(context.Background())

	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, CombinedFallback(), res.Records)
	assert.Equal(t, 3125.25, res.Records[0].Price)
}

func TestFetchAll_InvalidResult(t *testing.T) {
	short := fetcherFunc(func(context.Context) Result {
		return Result{Market: MarketDomestic, Source: SourceLive, Records: DomesticFallback()[:3]}
	})
	res := NewAggregator(short, NewInternational(liveProvider(), nil)).FetchAll(context.Background())
	assert.Equal(t, SourceFallback, res.Source)
	assert.ErrorIs(t, res.Reason, ErrFetcherFault)
	assert.Equal(t, CombinedFallback(), res.Records)

	swapped := fetcherFunc(func(context.Context) Result {
		recs := DomesticFallback()
		recs[0], recs[1] = recs[1], recs[0]
		return Result{Market: MarketDomestic, Source: SourceLive, Records: recs}
	})
	res = NewAggregator(swapped, NewInternational(liveProvider(), nil)).FetchAll(context.Background())
	assert.Equal(t, SourceFallback, res.Source)

	untagged := fetcherFunc(func(context.Context) Result {
		return Result{Market: MarketDomestic, Records: DomesticFallback()}
	})
	res = NewAggregator(untagged, NewInternational(liveProvider(), nil)).FetchAll(context.Background())
	assert.Equal(t, SourceFallback, res.Source)
	assert.ErrorIs(t, res.Reason, ErrFetcherFault)
	assert.Contains(t, res.Reason.Error(), "tagged unknown")

	infinite := fetcherFunc(func(context.Context) Result {
		recs := DomesticFallback()
		recs[1].ChangePercent = math.Inf(-1)
		return Result{Market: MarketDomestic, Source: SourceLive, Records: recs}
	})
	res = NewAggregator(infinite, NewInternational(liveProvider(), nil)).FetchAll(context.Background())
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, CombinedFallback(), res.Records)

	res = NewAggregator(nil, nil).FetchAll(context.Background())
	assert.Equal(t, SourceFallback, res.Source)
	assert.Len(t, res.Records, 8)
}

func TestFetchAll_MetadataComesFromCatalog(t *testing.T) {
	p := liveProvider()
	p.domestic[0]["名称"] = "其他名称"
	res := New(p).FetchAll(context.Background())
	require.Equal(t, SourceLive, res.Source)

	for i, in := range AllInstruments() {
		r := res.Records[i]
		assert.Equal(t, in.Code, r.Code)
		assert.Equal(t, in.Name, r.Name)
		assert.Equal(t, in.Valuation, model.Valuation{Score: r.Valuation, Level: r.ValuationLevel, Color: r.ValuationColor})
	}
}
