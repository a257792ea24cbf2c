// Package model 定义指数行情行、指数估值记录等数据结构。
package model

// RawRow 数据源返回的单行：列名 -> 值（字符串或数字），列名随数据源版本变化。
type RawRow map[string]any

// Table 一次行情查询返回的全部行。
type Table []RawRow

// ValuationLevel 估值档位（静态常量，非计算所得）。
type ValuationLevel string

const (
	LevelUnder  ValuationLevel = "低估"
	LevelNormal ValuationLevel = "正常"
	LevelOver   ValuationLevel = "高估"
)

// ValuationColor 前端展示色，与档位一一对应。
type ValuationColor string

const (
	ColorLoss   ValuationColor = "loss-green"
	ColorNormal ValuationColor = "yellow-400"
	ColorGain   ValuationColor = "gain-red"
)

// Valuation 单个指数的静态估值三元组。
type Valuation struct {
	Score int
	Level ValuationLevel
	Color ValuationColor
}

// IndexRecord 输出记录，字段顺序即 JSON 输出顺序。
type IndexRecord struct {
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Price          float64        `json:"price"`
	Change         float64        `json:"change"`
	ChangePercent  float64        `json:"changePercent"`
	Valuation      int            `json:"valuation"`
	ValuationLevel ValuationLevel `json:"valuationLevel"`
	ValuationColor ValuationColor `json:"valuationColor"`
}

// Quote 行情三项：现价、涨跌额、涨跌幅。
type Quote struct {
	Price         float64
	Change        float64
	ChangePercent float64
}
