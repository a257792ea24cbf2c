// Package market 按北京时间判断 A 股交易日与交易时段。
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"marketValuation/internal/trace"
)

const (
	StatusOpen      = "开市中"
	StatusAfterHour = "非交易时间"
	StatusClosed    = "休市"

	ColorOpen      = "green"
	ColorAfterHour = "orange"
	ColorClosed    = "red"
)

// Beijing 加载失败时退回固定 +8 时区。
var Beijing = mustLoadLocation("Asia/Shanghai")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// Holidays 年 -> "MM-DD" -> 是否放假。
type Holidays map[string]map[string]bool

// ParseHolidays 解析 {"2024":{"01-01":{"holiday":true,"name":"元旦"}}}；非法 JSON 报错。
func ParseHolidays(body []byte) (Holidays, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("holiday data: invalid json")
	}
	out := Holidays{}
	gjson.ParseBytes(body).ForEach(func(year, days gjson.Result) bool {
		m := map[string]bool{}
		days.ForEach(func(date, v gjson.Result) bool {
			m[date.String()] = v.Get("holiday").Bool()
			return true
		})
		out[year.String()] = m
		return true
	})
	return out, nil
}

// IsHoliday 未收录的日期视为非节假日。
func (h Holidays) IsHoliday(t time.Time) bool {
	t = t.In(Beijing)
	days, ok := h[t.Format("2006")]
	if !ok {
		return false
	}
	return days[t.Format("01-02")]
}

func IsTradingDay(t time.Time, h Holidays) bool {
	t = t.In(Beijing)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !h.IsHoliday(t)
}

// IsTradingTime 9:30~11:35、13:00~15:00，两端都包含。
func IsTradingTime(t time.Time) bool {
	t = t.In(Beijing)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Beijing)
	within := func(h1, m1, h2, m2 int) bool {
		begin := day.Add(time.Duration(h1)*time.Hour + time.Duration(m1)*time.Minute)
		end := day.Add(time.Duration(h2)*time.Hour + time.Duration(m2)*time.Minute)
		return !t.Before(begin) && !t.After(end)
	}
	return within(9, 30, 11, 35) || within(13, 0, 15, 0)
}

type Status struct {
	Status        string `json:"status"`
	StatusColor   string `json:"statusColor"`
	IsTradingDay  bool   `json:"isTradingDay"`
	IsTradingTime bool   `json:"isTradingTime"`
	CurrentTime   string `json:"currentTime"`
}

func Compute(now time.Time, h Holidays) Status {
	now = now.In(Beijing)
	tradingDay := IsTradingDay(now, h)
	tradingTime := tradingDay && IsTradingTime(now)
	s := Status{
		Status:        StatusClosed,
		StatusColor:   ColorClosed,
		IsTradingDay:  tradingDay,
		IsTradingTime: tradingTime,
		CurrentTime:   now.Format(time.RFC3339),
	}
	switch {
	case tradingTime:
		s.Status, s.StatusColor = StatusOpen, ColorOpen
	case tradingDay:
		s.Status, s.StatusColor = StatusAfterHour, ColorAfterHour
	}
	return s
}

// Getter 拉取节假日数据，api.Client 满足该接口。
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

type Service struct {
	getter Getter
	url    string
	now    func() time.Time
}

func NewService(getter Getter, holidayURL string) *Service {
	return &Service{getter: getter, url: holidayURL, now: time.Now}
}

// Holidays 拉取失败或未配置时返回空表，只按周末判断。
func (s *Service) Holidays(ctx context.Context) Holidays {
	if s.getter == nil || s.url == "" {
		return Holidays{}
	}
	body, err := s.getter.Get(ctx, s.url)
	if err != nil {
		trace.Warn(ctx, "market: 获取节假日数据失败 err=%v", err)
		return Holidays{}
	}
	h, err := ParseHolidays(body)
	if err != nil {
		trace.Warn(ctx, "market: 解析节假日数据失败 err=%v", err)
		return Holidays{}
	}
	return h
}

func (s *Service) Current(ctx context.Context) Status {
	return Compute(s.now(), s.Holidays(ctx))
}
