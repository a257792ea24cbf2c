// Package main 是指数行情估值程序的入口：抓取沪深与海外 8 个主要指数，输出一行 JSON。
// MARKETVAL_MODE 选择运行方式：once（默认，单次输出）、schedule（交易日每半小时 9:15~15:00）、
// serve（HTTP 接口）、status（输出当前市场状态）。
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketValuation/internal/api"
	"marketValuation/internal/config"
	"marketValuation/internal/mail"
	"marketValuation/internal/market"
	"marketValuation/internal/notify"
	"marketValuation/internal/quote"
	"marketValuation/internal/server"
	"marketValuation/internal/trace"
)

// 单次运行依次发出三次查询：国内、美股、港股
const queriesPerRun = 3

// 分页与节流等待的余量
const runTimeoutSlack = 30 * time.Second

type app struct {
	cfg     *config.Config
	client  *api.Client
	agg     *quote.Aggregator
	status  *market.Service
	mailCfg *mail.SMTPConfig
	alerter notify.Alerter
	out     io.Writer
	timeout time.Duration
}

func main() {
	ctx := trace.WithTraceID(context.Background(), trace.NewTraceID())
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
		trace.Setup(cfg.Log.Level, os.Stderr)
		trace.Warn(ctx, "main: 加载配置失败，使用默认配置 err=%v", err)
	} else {
		trace.Setup(cfg.Log.Level, os.Stderr)
	}

	a := newApp(ctx, cfg, os.Stdout)
	switch cfg.Mode {
	case config.ModeSchedule:
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		a.runScheduler(sigCtx)
	case config.ModeServe:
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		srv := server.New(cfg.Server.Addr, cfg.Log.Level, a.agg, a.status)
		if err := srv.Run(sigCtx); err != nil {
			trace.Warn(ctx, "main: HTTP 服务退出 err=%v", err)
			os.Exit(1)
		}
	case config.ModeStatus:
		a.printStatus(ctx)
	default:
		runCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		a.runOnce(runCtx)
	}
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) *app {
	client := newClient(cfg.Provider)
	mailCfg := buildMailConfig(&cfg.SMTP)
	return &app{
		cfg:     cfg,
		client:  client,
		agg:     quote.New(client),
		status:  market.NewService(client, cfg.Market.HolidayURL),
		mailCfg: mailCfg,
		alerter: buildAlerter(ctx, cfg, mailCfg),
		out:     out,
		timeout: runTimeout(cfg.Provider),
	}
}

// runTimeout 三次查询都用满重试预算时的总耗时，默认 3×67s 加余量。
func runTimeout(p config.ProviderConfig) time.Duration {
	return queriesPerRun*retryPolicy(p).Budget(p.GetTimeout()) + runTimeoutSlack
}

func retryPolicy(p config.ProviderConfig) api.RetryPolicy {
	return api.RetryPolicy{
		MaxRetries: p.MaxRetries,
		Backoff:    p.GetBackoff(),
		Statuses:   p.RetryStatuses,
	}
}

// newClient 进程内只建一次，注入到国内、国际两个抓取器。
func newClient(p config.ProviderConfig) *api.Client {
	return api.NewClient(
		api.WithBaseURL(p.BaseURL),
		api.WithTimeout(p.GetTimeout()),
		api.WithRateLimit(p.RateLimit),
		api.WithRetryPolicy(retryPolicy(p)),
		api.WithFilters(api.Filters{Domestic: p.DomesticFS, US: p.USFS, HK: p.HKFS}),
		api.WithColumns(p.Columns),
		api.WithCodeAliases(p.CodeAliases),
		api.WithPageSize(p.PageSize),
	)
}

func buildMailConfig(smtpCfg *config.SMTP) *mail.SMTPConfig {
	if smtpCfg == nil {
		smtpCfg = &config.SMTP{}
	}
	return &mail.SMTPConfig{
		Server:   smtpCfg.Server,
		Port:     smtpCfg.Port,
		User:     smtpCfg.User,
		Password: smtpCfg.Password,
		From:     smtpCfg.From,
		To:       smtpCfg.To,
	}
}

// buildAlerter 只接入已配置的通道，Telegram 初始化失败时跳过。
func buildAlerter(ctx context.Context, cfg *config.Config, mailCfg *mail.SMTPConfig) notify.Alerter {
	var m notify.Multi
	if mailCfg.Enabled() {
		m = append(m, mail.Alerter{Config: mailCfg})
	}
	if cfg.Telegram.Enabled() {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			trace.Warn(ctx, "main: 初始化 Telegram 失败，跳过 err=%v", err)
		} else {
			m = append(m, tg)
		}
	}
	return m
}

// runOnce 抓取一次并输出一行 JSON；无论数据来源如何都输出 8 条记录。
func (a *app) runOnce(ctx context.Context) quote.Result {
	ctx = trace.WithTraceID(ctx, trace.NewTraceID())
	trace.Log(ctx, "main: start")
	res := a.agg.FetchAll(ctx)
	if err := writeRecords(a.out, res.Records); err != nil {
		trace.Warn(ctx, "main: 写出结果失败 err=%v", err)
	}
	mail.MustSendReport(ctx, a.mailCfg, res.Records, res.Source.String())
	trace.Log(ctx, "main: end source=%s count=%d", res.Source, len(res.Records))
	return res
}

func (a *app) printStatus(ctx context.Context) {
	st := a.status.Current(ctx)
	if err := writeJSONLine(a.out, st); err != nil {
		trace.Warn(ctx, "main: 写出市场状态失败 err=%v", err)
	}
}
