package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"marketValuation/internal/model"
)

// Field 逻辑字段。
type Field string

const (
	FieldLatestPrice   Field = "最新价"
	FieldChangeAmount  Field = "涨跌额"
	FieldChangePercent Field = "涨跌幅"
)

// AliasTable 逻辑字段 -> 可接受列名，按声明顺序取第一个存在的列。
type AliasTable map[Field][]string

// DefaultAliases 兼容不同接口版本的列名，国内与国际行情共用。
var DefaultAliases = AliasTable{
	FieldLatestPrice:   {"最新价", "现价"},
	FieldChangeAmount:  {"涨跌额", "涨跌"},
	FieldChangePercent: {"涨跌幅", "涨跌幅%"},
}

// ErrMalformedValue 列存在但值无法转为数字。
var ErrMalformedValue = errors.New("malformed numeric value")

// Resolution 一次解析的诊断信息；Defaulted 表示所有别名列都缺失、按 0 处理。
type Resolution struct {
	Field     Field
	Column    string
	Defaulted bool
}

type Resolver struct {
	aliases AliasTable
}

func NewResolver(aliases AliasTable) *Resolver {
	if aliases == nil {
		aliases = DefaultAliases
	}
	return &Resolver{aliases: aliases}
}

// Resolve 缺列返回 0 且 Defaulted=true，不报错；只有列存在而值非数字时返回 ErrMalformedValue。
func (r *Resolver) Resolve(row model.RawRow, field Field) (float64, Resolution, error) {
	res := Resolution{Field: field}
	for _, col := range r.aliases[field] {
		v, ok := row[col]
		if !ok {
			continue
		}
		res.Column = col
		f, err := toFloat(v)
		if err != nil {
			return 0, res, fmt.Errorf("%s[%s]=%v: %w", field, col, v, err)
		}
		return f, res, nil
	}
	res.Defaulted = true
	return 0, res, nil
}

// Quote 解析现价、涨跌额、涨跌幅三项，返回所有缺列诊断。
func (r *Resolver) Quote(row model.RawRow) (model.Quote, []Resolution, error) {
	var q model.Quote
	var defaulted []Resolution
	targets := []struct {
		field Field
		dst   *float64
	}{
		{FieldLatestPrice, &q.Price},
		{FieldChangeAmount, &q.Change},
		{FieldChangePercent, &q.ChangePercent},
	}
	for _, t := range targets {
		v, res, err := r.Resolve(row, t.field)
		if err != nil {
			return model.Quote{}, nil, err
		}
		if res.Defaulted {
			defaulted = append(defaulted, res)
		}
		*t.dst = v
	}
	return q, defaulted, nil
}

// toFloat NaN 与 ±Inf 同样视为非法值，JSON 无法编码。
func toFloat(v any) (float64, error) {
	f, err := numeric(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrMalformedValue
	}
	return f, nil
}

func numeric(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, ErrMalformedValue
		}
		return f, nil
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(x), "%")
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return 0, ErrMalformedValue
		}
		return d.InexactFloat64(), nil
	default:
		return 0, ErrMalformedValue
	}
}
