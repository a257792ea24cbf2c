// Package config 从 .env、TOML 文件与环境变量加载运行配置：文件先读，环境变量覆盖。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// 配置路径与运行模式
const (
	defaultConfigPath = "config.toml"
	envConfigPath     = "CONFIG_PATH"
	envMode           = "MARKETVAL_MODE"
	envLogLevel       = "MARKETVAL_LOG_LEVEL"
	envServerAddr     = "MARKETVAL_SERVER_ADDR"
	envProviderURL    = "MARKETVAL_PROVIDER_URL"
	envProviderTO     = "MARKETVAL_PROVIDER_TIMEOUT"
	envHolidayURL     = "MARKETVAL_HOLIDAY_URL"
)

// SMTP 环境变量名沿用既有部署
const (
	envSMTPServer   = "SMTP_SERVER"
	envSMTPPort     = "SMTP_PORT"
	envSMTPUser     = "SMTP_USER"
	envSMTPPassword = "SMTP_PASSWORD"
	envSMTPAuthCode = "SMTP_AUTH_CODE"
	envSMTPFrom     = "SMTP_FROM"
	envSMTPTo       = "SMTP_TO"
)

const (
	envTelegramToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramChatID = "TELEGRAM_CHAT_ID"
)

// 运行模式
const (
	ModeOnce     = "once"
	ModeSchedule = "schedule"
	ModeServe    = "serve"
	ModeStatus   = "status"
)

type Config struct {
	Mode     string         `toml:"mode"`
	Log      LogConfig      `toml:"log"`
	Provider ProviderConfig `toml:"provider"`
	Server   ServerConfig   `toml:"server"`
	Schedule ScheduleConfig `toml:"schedule"`
	Market   MarketConfig   `toml:"market"`
	SMTP     SMTP           `toml:"smtp"`
	Telegram Telegram       `toml:"telegram"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// ProviderConfig 东方财富行情接口；fs 过滤串与列名可按接口版本调整。
// 默认：沪深重要指数 b:MK0010，全球指数 m:100（美股、港股指数均在其中，NDX/DJIA 映射为 IXIC/DJI）。
type ProviderConfig struct {
	BaseURL       string            `toml:"base_url"`
	Timeout       string            `toml:"timeout"`
	RateLimit     int               `toml:"rate_limit"`
	MaxRetries    int               `toml:"max_retries"`
	Backoff       string            `toml:"backoff"`
	RetryStatuses []int             `toml:"retry_statuses"`
	DomesticFS    string            `toml:"domestic_fs"`
	USFS          string            `toml:"us_fs"`
	HKFS          string            `toml:"hk_fs"`
	PageSize      int               `toml:"page_size"`
	Columns       map[string]string `toml:"columns"`
	CodeAliases   map[string]string `toml:"code_aliases"`
}

// GetTimeout 解析失败时回落 15s。
func (p *ProviderConfig) GetTimeout() time.Duration {
	return parseDuration(p.Timeout, 15*time.Second)
}

// GetBackoff 解析失败时回落 1s。
func (p *ProviderConfig) GetBackoff() time.Duration {
	return parseDuration(p.Backoff, time.Second)
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// ScheduleConfig 调度模式：连续 AlertAfter 次非实时数据后发提醒。
type ScheduleConfig struct {
	AlertAfter int `toml:"alert_after"`
}

type MarketConfig struct {
	HolidayURL string `toml:"holiday_url"`
}

type SMTP struct {
	Server   string `toml:"server"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	To       string `toml:"to"`
}

func (s *SMTP) Enabled() bool {
	srv := strings.TrimSpace(s.Server)
	from := strings.TrimSpace(s.From)
	to := strings.TrimSpace(s.To)
	return srv != "" && from != "" && to != ""
}

type Telegram struct {
	BotToken string `toml:"bot_token"`
	ChatID   int64  `toml:"chat_id"`
}

func (t *Telegram) Enabled() bool {
	return strings.TrimSpace(t.BotToken) != "" && t.ChatID != 0
}

// Default 超时 15s，重试 3 次，退避 1s→2s→4s。
func Default() *Config {
	return &Config{
		Mode: ModeOnce,
		Log:  LogConfig{Level: "info"},
		Provider: ProviderConfig{
			BaseURL:       "https://82.push2.eastmoney.com/api/qt/clist/get",
			Timeout:       "15s",
			RateLimit:     5,
			MaxRetries:    3,
			Backoff:       "1s",
			RetryStatuses: []int{429, 500, 502, 503, 504},
			DomesticFS:    "b:MK0010",
			USFS:          "m:100",
			HKFS:          "m:100",
			PageSize:      100,
			CodeAliases:   map[string]string{"NDX": "IXIC", "DJIA": "DJI"},
		},
		Server:   ServerConfig{Addr: ":8080"},
		Schedule: ScheduleConfig{AlertAfter: 3},
		Market:   MarketConfig{HolidayURL: "http://x2rr.github.io/funds/holiday.json"},
		SMTP:     SMTP{Port: 587},
	}
}

// Load 先加载 .env（不存在则忽略），再读 envConfigPath 指定文件（默认 config.toml，不存在则跳过），最后被环境变量覆盖。
func Load() (*Config, error) {
	_ = godotenv.Load()
	path := os.Getenv(envConfigPath)
	if path == "" {
		path = defaultConfigPath
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	cfg.Mode = normalizeMode(cfg.Mode)
	if cfg.SMTP.From == "" && cfg.SMTP.User != "" {
		cfg.SMTP.From = cfg.SMTP.User
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envMode); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(envServerAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(envProviderURL); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv(envProviderTO); v != "" {
		cfg.Provider.Timeout = v
	}
	if v := os.Getenv(envHolidayURL); v != "" {
		cfg.Market.HolidayURL = v
	}
	if v := os.Getenv(envSMTPServer); v != "" {
		cfg.SMTP.Server = v
	}
	if v := os.Getenv(envSMTPPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.SMTP.Port = p
		}
	}
	if v := os.Getenv(envSMTPUser); v != "" {
		cfg.SMTP.User = v
	}
	if v := os.Getenv(envSMTPPassword); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv(envSMTPAuthCode); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv(envSMTPFrom); v != "" {
		cfg.SMTP.From = v
	}
	if v := os.Getenv(envSMTPTo); v != "" {
		cfg.SMTP.To = v
	}
	if v := os.Getenv(envTelegramToken); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv(envTelegramChatID); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
}

func normalizeMode(m string) string {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case ModeSchedule:
		return ModeSchedule
	case ModeServe:
		return ModeServe
	case ModeStatus:
		return ModeStatus
	default:
		return ModeOnce
	}
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
