package api

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"marketValuation/internal/model"
)

// 数值字段，按列名写入行；"-" 等占位值不写，交由解析方按缺列处理。
var numericFields = []string{"f2", "f4", "f3"}

// parseTable 解析列表接口 JSON：data.total、data.diff（数组或对象 "0","1",...）。
// data 为 null 时返回空表。
func parseTable(body []byte, prefixMarket bool, columns, codeAliases map[string]string) (model.Table, int, error) {
	if !gjson.ValidBytes(body) {
		return nil, 0, fmt.Errorf("api: invalid json: %s", truncateForLog(body))
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return model.Table{}, 0, nil
	}
	total := int(data.Get("total").Int())
	diff := data.Get("diff")
	if !diff.Exists() || !(diff.IsArray() || diff.IsObject()) {
		return nil, total, fmt.Errorf("api: no data.diff")
	}
	var rows model.Table
	diff.ForEach(func(_, item gjson.Result) bool {
		code := strings.TrimSpace(item.Get("f12").String())
		if code == "" {
			return true
		}
		if prefixMarket {
			code = marketPrefix(item.Get("f13").Int()) + code
		}
		if alias, ok := codeAliases[code]; ok {
			code = alias
		}
		row := model.RawRow{
			columns["f12"]: code,
			columns["f14"]: strings.TrimSpace(item.Get("f14").String()),
		}
		for _, f := range numericFields {
			if v, ok := numericValue(item.Get(f)); ok {
				row[columns[f]] = v
			}
		}
		rows = append(rows, row)
		return true
	})
	return rows, total, nil
}

func marketPrefix(market int64) string {
	if market == marketShanghai {
		return prefixShanghai
	}
	return prefixShenzhen
}

// numericValue 数字原样返回 float64；字符串保留原文（可能带 %），占位符视为缺失。
func numericValue(v gjson.Result) (any, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Float(), true
	case gjson.String:
		s := strings.TrimSpace(v.String())
		if s == "" || s == "-" || s == "--" {
			return nil, false
		}
		return s, true
	default:
		return nil, false
	}
}
