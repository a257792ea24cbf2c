// Package notify 行情降级告警。
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketValuation/internal/quote"
	"marketValuation/internal/trace"
)

// MaxMessageLength Telegram 单条消息上限。
const MaxMessageLength = 4096

// Alerter 发送一条纯文本告警。
type Alerter interface {
	Alert(ctx context.Context, subject, text string) error
}

type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram 创建时会调用 getMe 校验 token。
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, chatID, tgbotapi.APIEndpoint, nil)
}

// NewTelegramWithEndpoint endpoint 形如 "https://api.telegram.org/bot%s/%s"；client 为 nil 时用默认 http.Client。
func NewTelegramWithEndpoint(token string, chatID int64, endpoint string, client tgbotapi.HTTPClient) (*Telegram, error) {
	var (
		bot *tgbotapi.BotAPI
		err error
	)
	if client == nil {
		bot, err = tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	} else {
		bot, err = tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	}
	if err != nil {
		return nil, fmt.Errorf("创建Telegram Bot失败: %w", err)
	}
	bot.Debug = false
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Alert(ctx context.Context, subject, text string) error {
	if t == nil || t.bot == nil {
		return errors.New("telegram客户端未初始化")
	}
	body := subject + "\n\n" + text
	if len(body) > MaxMessageLength {
		body = truncateUTF8(body, MaxMessageLength)
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, body)); err != nil {
		return fmt.Errorf("发送消息失败: %w", err)
	}
	trace.Log(ctx, "notify: telegram 已发送 chat=%d", t.chatID)
	return nil
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// Multi 依次发给所有通道，返回合并后的错误。
type Multi []Alerter

func (m Multi) Alert(ctx context.Context, subject, text string) error {
	var errs []error
	for _, a := range m {
		if a == nil {
			continue
		}
		if err := a.Alert(ctx, subject, text); err != nil {
			trace.Warn(ctx, "notify: 告警发送失败 err=%v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FallbackSubject 告警标题。
const FallbackSubject = "指数行情降级提醒"

// FormatFallbackAlert 连续 consecutive 次未拿到完整实时行情时的告警正文。
func FormatFallbackAlert(res quote.Result, consecutive int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "连续 %d 次未获取到完整实时行情，本次数据来源: %s\n", consecutive, res.Source)
	if res.Reason != nil {
		fmt.Fprintf(&b, "原因: %v\n", res.Reason)
	}
	if len(res.Defaulted) > 0 {
		fields := make([]string, 0, len(res.Defaulted))
		for _, d := range res.Defaulted {
			fields = append(fields, fmt.Sprintf("%s/%s", d.Code, d.Field))
		}
		fmt.Fprintf(&b, "缺列按 0 输出: %s\n", strings.Join(fields, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
