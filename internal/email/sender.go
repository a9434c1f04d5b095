// Package email отправляет транзакционные письма покупателям.
package email

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"example.com/storefront/internal/domain"
	"example.com/storefront/pkg/config"
	"example.com/storefront/pkg/logger"
)

// Sender отправляет письмо по событию из email-топика.
type Sender interface {
	Send(ctx context.Context, event *domain.EmailEvent) error
}

// emailTemplate — тема и тело письма с подстановками вида {{key}}.
type emailTemplate struct {
	subject string
	body    string
}

// Шаблоны по типу уведомления. Template в событии совпадает
// с domain.NotificationType.
var emailTemplates = map[string]emailTemplate{
	string(domain.NotificationOrderConfirmed): {
		subject: "Заказ {{order_number}} оплачен",
		body: "Здравствуйте, {{customer_name}}!\n\n" +
			"Мы получили оплату по заказу {{order_number}} на сумму {{total}} {{currency}}.\n" +
			"Заказ передан в сборку, о каждом шаге сообщим отдельным письмом.\n",
	},
	string(domain.NotificationPaymentFailed): {
		subject: "Оплата заказа {{order_number}} не прошла",
		body: "Здравствуйте, {{customer_name}}!\n\n" +
			"К сожалению, оплата заказа {{order_number}} не прошла.\n" +
			"Попробуйте оформить заказ ещё раз — позиции корзины мы сохранили.\n",
	},
	string(domain.NotificationOrderShipped): {
		subject: "Заказ {{order_number}} отправлен",
		body: "Здравствуйте, {{customer_name}}!\n\n" +
			"Заказ {{order_number}} передан в доставку.\n" +
			"Трек-номер: {{tracking_number}}\n",
	},
	string(domain.NotificationOrderDelivered): {
		subject: "Заказ {{order_number}} доставлен",
		body: "Здравствуйте, {{customer_name}}!\n\n" +
			"Заказ {{order_number}} доставлен. Спасибо за покупку!\n",
	},
	string(domain.NotificationOrderCancelled): {
		subject: "Заказ {{order_number}} отменён",
		body: "Здравствуйте, {{customer_name}}!\n\n" +
			"Заказ {{order_number}} отменён. Если вы его оплатили,\n" +
			"деньги вернутся тем же способом в течение нескольких дней.\n",
	},
}

// smtpSender — отправка через SMTP с PLAIN аутентификацией.
type smtpSender struct {
	cfg config.SMTPConfig
}

// NewSender создаёт SMTP-отправитель писем.
func NewSender(cfg config.SMTPConfig) Sender {
	return &smtpSender{cfg: cfg}
}

// Send рендерит шаблон события и отправляет письмо.
// Неизвестный шаблон — ошибка конфигурации, ретраить бессмысленно.
func (s *smtpSender) Send(ctx context.Context, event *domain.EmailEvent) error {
	log := logger.FromContext(ctx)

	if event.To == "" {
		return fmt.Errorf("пустой адрес получателя")
	}

	tpl, ok := emailTemplates[event.Template]
	if !ok {
		return fmt.Errorf("неизвестный шаблон письма: %s", event.Template)
	}

	subject := render(tpl.subject, event)
	body := render(tpl.body, event)
	msg := buildMessage(s.cfg.From, event.To, subject, body)

	if err := s.sendMail(event.To, msg); err != nil {
		return fmt.Errorf("ошибка отправки письма: %w", err)
	}

	log.Info().
		Str("template", event.Template).
		Str("order_number", event.OrderNumber).
		Msg("Письмо отправлено")

	return nil
}

// sendMail ведёт SMTP-диалог с дедлайном на соединение целиком:
// зависший сервер не должен останавливать воркер надолго,
// по таймауту письмо уйдёт в ретрай.
func (s *smtpSender) sendMail(to string, msg []byte) error {
	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.Dial("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	if s.cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.Timeout))
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}
	if s.cfg.User != "" {
		auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// render подставляет данные события в плейсхолдеры {{key}}.
func render(tpl string, event *domain.EmailEvent) string {
	out := strings.ReplaceAll(tpl, "{{order_number}}", event.OrderNumber)
	for key, value := range event.Data {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}

// buildMessage собирает RFC 5322 сообщение с UTF-8 заголовками.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + encodeSubject(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// encodeSubject кодирует тему в RFC 2047 (кириллица в заголовке).
func encodeSubject(subject string) string {
	return fmt.Sprintf("=?UTF-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(subject)))
}
