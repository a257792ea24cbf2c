package quote

import (
	"math"

	"marketValuation/internal/model"
)

// Instrument 一个跟踪的指数：输出代码、行情表代码、名称、静态估值与兜底行情。
type Instrument struct {
	Code         string
	ProviderCode string
	Name         string
	Valuation    model.Valuation
	Fallback     model.Quote
}

// Record 用给定行情拼出输出记录，代码与估值三元组只取自目录。
func (i Instrument) Record(q model.Quote) model.IndexRecord {
	return model.IndexRecord{
		Code:           i.Code,
		Name:           i.Name,
		Price:          q.Price,
		Change:         q.Change,
		ChangePercent:  q.ChangePercent,
		Valuation:      i.Valuation.Score,
		ValuationLevel: i.Valuation.Level,
		ValuationColor: i.Valuation.Color,
	}
}

var (
	valUnder35  = model.Valuation{Score: 35, Level: model.LevelUnder, Color: model.ColorLoss}
	valUnder25  = model.Valuation{Score: 25, Level: model.LevelUnder, Color: model.ColorLoss}
	valNormal45 = model.Valuation{Score: 45, Level: model.LevelNormal, Color: model.ColorNormal}
	valNormal55 = model.Valuation{Score: 55, Level: model.LevelNormal, Color: model.ColorNormal}
	valNormal60 = model.Valuation{Score: 60, Level: model.LevelNormal, Color: model.ColorNormal}
	valOver65   = model.Valuation{Score: 65, Level: model.LevelOver, Color: model.ColorGain}
	valOver75   = model.Valuation{Score: 75, Level: model.LevelOver, Color: model.ColorGain}
)

// 国内四个指数，顺序即输出顺序。
var domesticInstruments = []Instrument{
	{Code: "sh000001", ProviderCode: "sh000001", Name: "上证指数", Valuation: valUnder35, Fallback: model.Quote{Price: 3125.25, Change: 15.62, ChangePercent: 0.50}},
	{Code: "sh000300", ProviderCode: "sh000300", Name: "沪深300", Valuation: valUnder25, Fallback: model.Quote{Price: 3852.12, Change: 20.05, ChangePercent: 0.52}},
	{Code: "sz399001", ProviderCode: "sz399001", Name: "深证成指", Valuation: valNormal45, Fallback: model.Quote{Price: 10256.78, Change: -52.34, ChangePercent: -0.51}},
	{Code: "sz399006", ProviderCode: "sz399006", Name: "创业板指", Valuation: valOver65, Fallback: model.Quote{Price: 1782.30, Change: 21.85, ChangePercent: 1.24}},
}

// 美股三个指数取自美股表，恒生指数取自港股表。
var (
	usInstruments = []Instrument{
		{Code: "nasdaq", ProviderCode: "IXIC", Name: "纳斯达克", Valuation: valNormal55, Fallback: model.Quote{Price: 14823.45, Change: 124.65, ChangePercent: 0.85}},
		{Code: "dowjones", ProviderCode: "DJI", Name: "道琼斯", Valuation: valOver75, Fallback: model.Quote{Price: 37245.10, Change: 118.45, ChangePercent: 0.32}},
		{Code: "sp500", ProviderCode: "SPX", Name: "标普500", Valuation: valNormal60, Fallback: model.Quote{Price: 4856.78, Change: 28.05, ChangePercent: 0.58}},
	}
	hkInstruments = []Instrument{
		{Code: "hangseng", ProviderCode: "HSI", Name: "恒生指数", Valuation: valUnder25, Fallback: model.Quote{Price: 16825.30, Change: -110.25, ChangePercent: -0.65}},
	}
)

// DomesticInstruments 返回副本，调用方修改不影响目录。
func DomesticInstruments() []Instrument {
	return append([]Instrument(nil), domesticInstruments...)
}

func InternationalInstruments() []Instrument {
	out := make([]Instrument, 0, len(usInstruments)+len(hkInstruments))
	out = append(out, usInstruments...)
	return append(out, hkInstruments...)
}

// AllInstruments 国内在前、国际在后，共 8 个。
func AllInstruments() []Instrument {
	return append(DomesticInstruments(), InternationalInstruments()...)
}

func fallbackRecords(instruments []Instrument) []model.IndexRecord {
	out := make([]model.IndexRecord, 0, len(instruments))
	for _, in := range instruments {
		out = append(out, in.Record(in.Fallback))
	}
	return out
}

// DomesticFallback 国内兜底记录。
func DomesticFallback() []model.IndexRecord {
	return fallbackRecords(domesticInstruments)
}

func InternationalFallback() []model.IndexRecord {
	return fallbackRecords(InternationalInstruments())
}

// CombinedFallback 全部 8 条兜底记录。
func CombinedFallback() []model.IndexRecord {
	return fallbackRecords(AllInstruments())
}

// Finite 所有数值字段都是有限数，可编码为 JSON。
func Finite(records []model.IndexRecord) bool {
	for _, r := range records {
		for _, f := range []float64{r.Price, r.Change, r.ChangePercent} {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}
		}
	}
	return true
}
