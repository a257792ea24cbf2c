package quote

import (
	"context"
	"errors"
	"fmt"

	"marketValuation/internal/model"
	"marketValuation/internal/trace"
)

// Aggregator 国内在前、国际在后拼成 8 条记录。
type Aggregator struct {
	domestic      Fetcher
	international Fetcher
}

func NewAggregator(domestic, international Fetcher) *Aggregator {
	return &Aggregator{domestic: domestic, international: international}
}

// New 用同一数据源装配两个市场抓取器。
func New(p Provider) *Aggregator {
	r := NewResolver(nil)
	return NewAggregator(NewDomestic(p, r), NewInternational(p, r))
}

// FetchAll 两个市场依次抓取。任一抓取器 panic 或返回不合规结果时，整体换成 8 条兜底记录。
func (a *Aggregator) FetchAll(ctx context.Context) Result {
	dom, err := guardedFetch(ctx, a.domestic, domesticInstruments)
	var intl Result
	if err == nil {
		intl, err = guardedFetch(ctx, a.international, InternationalInstruments())
	}
	if err != nil {
		trace.Warn(ctx, "quote: 获取市场数据失败，使用全部兜底数据: %v", err)
		return Result{Market: MarketAll, Source: SourceFallback, Records: CombinedFallback(), Reason: err}
	}
	records := make([]model.IndexRecord, 0, len(dom.Records)+len(intl.Records))
	records = append(records, dom.Records...)
	records = append(records, intl.Records...)
	return Result{
		Market:    MarketAll,
		Source:    combineSource(dom.Source, intl.Source),
		Records:   records,
		Reason:    errors.Join(dom.Reason, intl.Reason),
		Defaulted: append(append([]Defaulted(nil), dom.Defaulted...), intl.Defaulted...),
	}
}

func guardedFetch(ctx context.Context, f Fetcher, want []Instrument) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, fmt.Errorf("%w: panic: %v", ErrFetcherFault, r)
		}
	}()
	if f == nil {
		return Result{}, fmt.Errorf("%w: nil fetcher", ErrFetcherFault)
	}
	res = f.Fetch(ctx)
	if err := validate(res, want); err != nil {
		return Result{}, err
	}
	return res, nil
}

// validate 记录数与代码顺序必须与目录一致，数值有限，来源标记只能是 live 或 fallback。
func validate(res Result, want []Instrument) error {
	if res.Source != SourceLive && res.Source != SourceFallback {
		return fmt.Errorf("%w: %s result tagged %s", ErrFetcherFault, res.Market, res.Source)
	}
	if len(res.Records) != len(want) {
		return fmt.Errorf("%w: %s returned %d records, want %d", ErrFetcherFault, res.Market, len(res.Records), len(want))
	}
	if !Finite(res.Records) {
		return fmt.Errorf("%w: %s returned non-finite values", ErrFetcherFault, res.Market)
	}
	for i, in := range want {
		if res.Records[i].Code != in.Code {
			return fmt.Errorf("%w: %s record %d is %q, want %q", ErrFetcherFault, res.Market, i, res.Records[i].Code, in.Code)
		}
	}
	return nil
}

func combineSource(a, b Source) Source {
	switch {
	case a == SourceLive && b == SourceLive:
		return SourceLive
	case a == SourceFallback && b == SourceFallback:
		return SourceFallback
	default:
		return SourcePartial
	}
}
