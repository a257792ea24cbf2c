// Package mail 按 SMTP 配置发送指数行情日报与降级告警邮件。
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"marketValuation/internal/model"
	"marketValuation/internal/trace"
)

const (
	smtpTimeout     = 15 * time.Second
	defaultSMTPPort = 587
	implicitTLSPort = 465
)

const reportSubject = "指数行情估值"

type SMTPConfig struct {
	Server   string
	Port     int
	User     string
	Password string
	From     string
	To       string
}

func (s *SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Server) != "" &&
		strings.TrimSpace(s.From) != "" &&
		strings.TrimSpace(s.To) != ""
}

func (s *SMTPConfig) recipients() []string {
	var out []string
	for _, t := range strings.Split(s.To, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SendReport source 为 live/partial/fallback，写进标题。
func SendReport(ctx context.Context, cfg *SMTPConfig, records []model.IndexRecord, source string) error {
	if cfg == nil || !cfg.Enabled() {
		return nil
	}
	if len(records) == 0 {
		return nil
	}
	trace.Log(ctx, "mail: SendReport to=%s count=%d source=%s", cfg.To, len(records), source)
	subject := fmt.Sprintf("%s（%s）", reportSubject, source)
	if err := send(cfg, subject, buildHTMLTable(records, source), cfg.recipients()); err != nil {
		trace.Log(ctx, "mail: send err=%v", err)
		return err
	}
	trace.Log(ctx, "mail: sent ok")
	return nil
}

// SendAlert 纯文本告警，按 <pre> 包进 HTML。
func SendAlert(ctx context.Context, cfg *SMTPConfig, subject, text string) error {
	if cfg == nil || !cfg.Enabled() {
		return nil
	}
	body := `<!DOCTYPE html><html><head><meta charset="UTF-8"></head><body><pre>` +
		escapeHTML(text) + `</pre></body></html>`
	if err := send(cfg, subject, body, cfg.recipients()); err != nil {
		return err
	}
	trace.Log(ctx, "mail: 告警已发送 to=%s", cfg.To)
	return nil
}

// Alerter 把邮件告警接到通知通道上。
type Alerter struct {
	Config *SMTPConfig
}

func (a Alerter) Alert(ctx context.Context, subject, text string) error {
	return SendAlert(ctx, a.Config, subject, text)
}

func buildHTMLTable(records []model.IndexRecord, source string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"><title>指数行情估值</title></head><body>`)
	b.WriteString(`<h2>主要指数行情与估值</h2>`)
	if source != "live" {
		b.WriteString(fmt.Sprintf(`<p>数据来源：%s，部分或全部为兜底数据。</p>`, escapeHTML(source)))
	}
	b.WriteString(`<table border="1" cellspacing="0" cellpadding="8" style="border-collapse: collapse; font-size: 14px;">`)
	b.WriteString(`<thead><tr style="background: #eee;"><th>代码</th><th>名称</th><th>最新价</th><th>涨跌额</th><th>涨跌幅%</th><th>估值</th><th>估值水平</th></tr></thead><tbody>`)
	for _, r := range records {
		b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%.2f</td><td>%.2f</td><td>%.2f</td><td>%d</td><td>%s</td></tr>",
			escapeHTML(r.Code), escapeHTML(r.Name), r.Price, r.Change, r.ChangePercent, r.Valuation, escapeHTML(string(r.ValuationLevel))))
	}
	b.WriteString("</tbody></table></body></html>")
	return b.String()
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}

func buildMessage(from string, to []string, subject, htmlBody string) string {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n",
		from, strings.Join(to, ","), mime.BEncoding.Encode("UTF-8", subject))
	return headers + htmlBody
}

func send(cfg *SMTPConfig, subject, htmlBody string, to []string) error {
	port := cfg.Port
	if port == 0 {
		port = defaultSMTPPort
	}
	addr := net.JoinHostPort(cfg.Server, strconv.Itoa(port))

	var conn net.Conn
	var err error
	if port == implicitTLSPort {
		conn, err = tls.DialWithDialer(&net.Dialer{Timeout: smtpTimeout}, "tcp", addr, &tls.Config{ServerName: cfg.Server})
	} else {
		conn, err = net.DialTimeout("tcp", addr, smtpTimeout)
	}
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Server)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Server}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Server)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, t := range to {
		if err := client.Rcpt(t); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", t, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(buildMessage(cfg.From, to, subject, htmlBody))); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return client.Quit()
}

// MustSendReport 失败只记日志，不影响标准输出。
func MustSendReport(ctx context.Context, cfg *SMTPConfig, records []model.IndexRecord, source string) {
	if cfg == nil || !cfg.Enabled() {
		trace.Debug(ctx, "mail: 未配置 SMTP，跳过")
		return
	}
	if err := SendReport(ctx, cfg, records, source); err != nil {
		trace.Warn(ctx, "mail: 发送失败 err=%v", err)
		return
	}
	trace.Log(ctx, "mail: 已发送 to=%s count=%d", cfg.To, len(records))
}
