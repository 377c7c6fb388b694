package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"projo/internal/config"
	"projo/internal/logger"

	"go.uber.org/zap"
)

// SMTPNotifier шлёт письма через std net/smtp; ошибка отправки -
// обычное возвращаемое значение, retry решает планировщик
type SMTPNotifier struct {
	addr string
	from string
	auth smtp.Auth
}

func NewSMTP(cfg config.SMTPConfig) *SMTPNotifier {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPNotifier{
		addr: cfg.Host + ":" + cfg.Port,
		from: cfg.From,
		auth: auth,
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.from)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(n.addr, n.auth, n.from, []string{recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("отправка письма: %w", err)
	}
	return nil
}

// LogNotifier для dev-режима: уведомления уходят в лог вместо почты
type LogNotifier struct{}

func NewLog() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	logger.Info("Notifier: Уведомление (dev-режим, без отправки)",
		zap.String("recipient", recipient),
		zap.String("subject", subject))
	return nil
}
