// Package quote 指数行情核心：列名归一、按代码取行、分市场抓取与三级兜底。
// 国内、国际两个抓取器各自失败时整体换成本市场兜底数据；聚合器再兜一层，保证始终输出 8 条记录。
package quote

import (
	"context"
	"errors"
	"fmt"

	"marketValuation/internal/model"
	"marketValuation/internal/trace"
)

// CodeColumn 行情表中的代码列。
const CodeColumn = "代码"

// Provider 行情数据源：每个查询返回一张以代码列为键的行情表。
type Provider interface {
	DomesticSpot(ctx context.Context) (model.Table, error)
	USSpot(ctx context.Context) (model.Table, error)
	HKSpot(ctx context.Context) (model.Table, error)
}

// Fetcher 单个市场的抓取器，失败不报错，而是返回带标记的兜底结果。
type Fetcher interface {
	Fetch(ctx context.Context) Result
}

type Market string

const (
	MarketDomestic      Market = "domestic"
	MarketInternational Market = "international"
	MarketAll           Market = "all"
)

// Source 结果来源标记；零值 SourceUnknown 表示未打标，聚合器视为无效结果。
type Source int

const (
	SourceUnknown Source = iota
	SourceLive
	SourcePartial
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceUnknown:
		return "unknown"
	case SourceLive:
		return "live"
	case SourcePartial:
		return "partial"
	case SourceFallback:
		return "fallback"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Defaulted 某个指数某个字段缺列、按 0 输出。
type Defaulted struct {
	Code string
	Resolution
}

// Result Live(records) 或 Fallback(records, reason)；聚合结果另有 Partial。
type Result struct {
	Market    Market
	Source    Source
	Records   []model.IndexRecord
	Reason    error
	Defaulted []Defaulted
}

// tableQuery 一次数据源查询及从中提取的指数。
type tableQuery struct {
	name        string
	query       func(context.Context) (model.Table, error)
	instruments []Instrument
}

type marketFetcher struct {
	market   Market
	queries  []tableQuery
	fallback func() []model.IndexRecord
	resolver *Resolver
}

func (f *marketFetcher) Fetch(ctx context.Context) Result {
	records, defaulted, err := f.collect(ctx)
	if err != nil {
		trace.Warn(ctx, "quote: 获取%s市场数据失败，使用兜底数据: %v", f.market, err)
		return Result{Market: f.market, Source: SourceFallback, Records: f.fallback(), Reason: err}
	}
	for _, d := range defaulted {
		trace.Warn(ctx, "quote: %s 缺少字段 %s 的所有别名列，按 0 输出", d.Code, d.Field)
	}
	return Result{Market: f.market, Source: SourceLive, Records: records, Defaulted: defaulted}
}

// collect 先完成全部查询，再逐个提取；任一步失败整体放弃。
func (f *marketFetcher) collect(ctx context.Context) ([]model.IndexRecord, []Defaulted, error) {
	tables := make([]model.Table, len(f.queries))
	for i, q := range f.queries {
		if q.query == nil {
			return nil, nil, fmt.Errorf("%s: provider is nil", q.name)
		}
		t, err := q.query(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", q.name, err)
		}
		tables[i] = t
	}
	var records []model.IndexRecord
	var defaulted []Defaulted
	for i, q := range f.queries {
		for _, in := range q.instruments {
			row, err := ExtractRow(tables[i], CodeColumn, in.ProviderCode)
			if err != nil {
				return nil, nil, fmt.Errorf("%s %s: %w", q.name, in.Code, err)
			}
			quote, missing, err := f.resolver.Quote(row)
			if err != nil {
				return nil, nil, fmt.Errorf("%s %s: %w", q.name, in.Code, err)
			}
			for _, m := range missing {
				defaulted = append(defaulted, Defaulted{Code: in.Code, Resolution: m})
			}
			records = append(records, in.Record(quote))
		}
	}
	return records, defaulted, nil
}

// Domestic 上证指数、沪深300、深证成指、创业板指；一次查询沪深行情表。
type Domestic struct {
	marketFetcher
}

// NewDomestic resolver 为 nil 时使用 DefaultAliases。
func NewDomestic(p Provider, resolver *Resolver) *Domestic {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	var query func(context.Context) (model.Table, error)
	if p != nil {
		query = p.DomesticSpot
	}
	return &Domestic{marketFetcher{
		market:   MarketDomestic,
		queries:  []tableQuery{{name: "domestic spot", query: query, instruments: domesticInstruments}},
		fallback: DomesticFallback,
		resolver: resolver,
	}}
}

// International 纳斯达克、道琼斯、标普500 取自美股表，恒生指数取自港股表。
type International struct {
	marketFetcher
}

func NewInternational(p Provider, resolver *Resolver) *International {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	var us, hk func(context.Context) (model.Table, error)
	if p != nil {
		us, hk = p.USSpot, p.HKSpot
	}
	return &International{marketFetcher{
		market: MarketInternational,
		queries: []tableQuery{
			{name: "us spot", query: us, instruments: usInstruments},
			{name: "hk spot", query: hk, instruments: hkInstruments},
		},
		fallback: InternationalFallback,
		resolver: resolver,
	}}
}

// ErrFetcherFault 抓取器自身出错（panic 或结果不合规），而非数据问题。
var ErrFetcherFault = errors.New("fetcher fault")

var (
	_ Fetcher = (*Domestic)(nil)
	_ Fetcher = (*International)(nil)
)
