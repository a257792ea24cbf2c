package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"marketValuation/internal/model"
	"marketValuation/internal/quote"
)

// writeRecords 一行 JSON 数组，中文原样输出。
// 记录无法编码时改写全部兜底记录，并返回编码错误。
func writeRecords(w io.Writer, records []model.IndexRecord) error {
	if records == nil {
		records = []model.IndexRecord{}
	}
	line, err := encodeJSONLine(records)
	if err != nil {
		fallback, fbErr := encodeJSONLine(quote.CombinedFallback())
		if fbErr != nil {
			return errors.Join(err, fbErr)
		}
		_, wErr := w.Write(fallback)
		return errors.Join(fmt.Errorf("encode records: %w", err), wErr)
	}
	_, err = w.Write(line)
	return err
}

func writeJSONLine(w io.Writer, v any) error {
	line, err := encodeJSONLine(v)
	if err != nil {
		return err
	}
	_, err = w.Write(line)
	return err
}

// encodeJSONLine 先完整编码再写出，失败时不留半行。
func encodeJSONLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
