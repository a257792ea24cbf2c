package quote

import (
	"errors"
	"fmt"

	"marketValuation/internal/model"
)

// ErrRowNotFound 行情表中没有目标代码（接口变更或指数下架）。
var ErrRowNotFound = errors.New("row not found")

type LookupError struct {
	Column string
	Code   string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no row with %s=%s", e.Column, e.Code)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrRowNotFound
}

// ExtractRow 返回代码列等于 code 的第一行；多行匹配时取第一行。
func ExtractRow(table model.Table, codeColumn, code string) (model.RawRow, error) {
	for _, row := range table {
		v, ok := row[codeColumn]
		if !ok {
			continue
		}
		if codeString(v) == code {
			return row, nil
		}
	}
	return nil, &LookupError{Column: codeColumn, Code: code}
}

func codeString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
