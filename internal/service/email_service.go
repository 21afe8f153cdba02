package service

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/fishmart-next/internal/config"
	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/models"
)

var (
	ErrEmailServiceDisabled      = errors.New("email service disabled")
	ErrEmailServiceNotConfigured = errors.New("email service not configured")
	ErrInvalidEmail              = errors.New("invalid email")
	ErrEmailRecipientRejected    = errors.New("email recipient rejected")
)

// EmailService 邮件发送服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// Enabled 是否已启用并配置
func (s *EmailService) Enabled() bool {
	return s != nil && s.cfg != nil && s.cfg.Enabled && s.cfg.Host != "" && s.cfg.Port != 0 && s.cfg.From != ""
}

// OrderNotificationItem 通知中的订单项
type OrderNotificationItem struct {
	Name      string
	Quantity  int
	UnitPrice models.Money
	Total     models.Money
}

// OrderNotification 下单通知内容
type OrderNotification struct {
	OrderNo         string
	Status          string
	CustomerName    string
	CustomerEmail   string
	SellerName      string
	ShippingAddress string
	Items           []OrderNotificationItem
	Subtotal        models.Money
	Shipping        models.Money
	Discount        models.Money
	Total           models.Money
	PointsEarned    int64
	IsGuest         bool
	CreatedAt       time.Time
}

type emailAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// SendOrderNotification 发送下单通知（附文本发票），role 为 seller 或 customer
func (s *EmailService) SendOrderNotification(toEmail string, payload OrderNotification, role string) error {
	subject, body := buildOrderNotificationContent(payload, role)
	invoice := emailAttachment{
		Filename:    fmt.Sprintf("invoice-%s.txt", payload.OrderNo),
		ContentType: "text/plain; charset=UTF-8",
		Content:     []byte(buildInvoiceDocument(payload)),
	}
	return s.sendEmail(toEmail, subject, body, invoice)
}

func (s *EmailService) sendEmail(toEmail, subject, body string, attachments ...emailAttachment) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return ErrEmailServiceDisabled
	}
	if s.cfg.Host == "" || s.cfg.Port == 0 || s.cfg.From == "" {
		return ErrEmailServiceNotConfigured
	}
	if _, err := mail.ParseAddress(toEmail); err != nil {
		return ErrInvalidEmail
	}

	from := buildFromAddress(s.cfg.From, s.cfg.FromName)
	msg, err := buildEmailMessage(from, toEmail, subject, body, attachments...)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" || s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if s.cfg.UseSSL {
		return normalizeEmailSendError(sendMailWithSSL(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg)))
	}
	if s.cfg.UseTLS {
		return normalizeEmailSendError(sendMailWithStartTLS(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg)))
	}
	return normalizeEmailSendError(sendMailPlain(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg)))
}

func buildOrderNotificationContent(payload OrderNotification, role string) (string, string) {
	var body strings.Builder
	if role == constants.NotifyRoleSeller {
		subject := fmt.Sprintf("New order %s received", payload.OrderNo)
		body.WriteString(fmt.Sprintf("You have a new order from %s.\n\n", fallbackText(payload.CustomerName, payload.CustomerEmail)))
		body.WriteString(fmt.Sprintf("Order No: %s\n", payload.OrderNo))
		body.WriteString(fmt.Sprintf("Items: %d\n", len(payload.Items)))
		body.WriteString(fmt.Sprintf("Order total: %s\n", payload.Total.StringFixed(2)))
		if payload.ShippingAddress != "" {
			body.WriteString(fmt.Sprintf("Ship to: %s\n", payload.ShippingAddress))
		}
		body.WriteString("\nThe invoice is attached.")
		return subject, body.String()
	}

	subject := fmt.Sprintf("Order %s confirmed", payload.OrderNo)
	body.WriteString(fmt.Sprintf("Hi %s,\n\nThank you for your order.\n\n", fallbackText(payload.CustomerName, "there")))
	body.WriteString(fmt.Sprintf("Order No: %s\n", payload.OrderNo))
	if payload.SellerName != "" {
		body.WriteString(fmt.Sprintf("Seller: %s\n", payload.SellerName))
	}
	body.WriteString(fmt.Sprintf("Status: %s\n", payload.Status))
	body.WriteString(fmt.Sprintf("Total paid: %s\n", payload.Total.StringFixed(2)))
	if payload.PointsEarned > 0 {
		body.WriteString(fmt.Sprintf("Points earned: %d\n", payload.PointsEarned))
	}
	if payload.IsGuest {
		body.WriteString("\nYou checked out as a guest. Register with this email to track your orders.\n")
	}
	body.WriteString("\nThe invoice is attached.")
	return subject, body.String()
}

// buildInvoiceDocument 纯文本发票
func buildInvoiceDocument(payload OrderNotification) string {
	var buf strings.Builder
	buf.WriteString("INVOICE\n")
	buf.WriteString(fmt.Sprintf("Order No: %s\n", payload.OrderNo))
	if !payload.CreatedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("Date: %s\n", payload.CreatedAt.Format("2006-01-02 15:04")))
	}
	if payload.SellerName != "" {
		buf.WriteString(fmt.Sprintf("Seller: %s\n", payload.SellerName))
	}
	buf.WriteString(fmt.Sprintf("Bill to: %s <%s>\n", payload.CustomerName, payload.CustomerEmail))
	if payload.ShippingAddress != "" {
		buf.WriteString(fmt.Sprintf("Ship to: %s\n", payload.ShippingAddress))
	}
	buf.WriteString("\n")
	for _, item := range payload.Items {
		buf.WriteString(fmt.Sprintf("%-32s %4d x %10s = %10s\n", item.Name, item.Quantity, item.UnitPrice.StringFixed(2), item.Total.StringFixed(2)))
	}
	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf("Subtotal: %s\n", payload.Subtotal.StringFixed(2)))
	buf.WriteString(fmt.Sprintf("Shipping: %s\n", payload.Shipping.StringFixed(2)))
	buf.WriteString(fmt.Sprintf("Discount: -%s\n", payload.Discount.StringFixed(2)))
	buf.WriteString(fmt.Sprintf("Total: %s\n", payload.Total.StringFixed(2)))
	return buf.String()
}

func fallbackText(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func buildFromAddress(from, name string) string {
	if strings.TrimSpace(name) == "" {
		return from
	}
	encoded := mime.QEncoding.Encode("UTF-8", name)
	return (&mail.Address{Name: encoded, Address: from}).String()
}

func buildEmailMessage(from, to, subject, body string, attachments ...emailAttachment) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	if len(attachments) == 0 {
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(body)
		return buf.String(), nil
	}

	var parts bytes.Buffer
	writer := multipart.NewWriter(&parts)
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n", writer.Boundary()))
	buf.WriteString("\r\n")

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	textPart, err := writer.CreatePart(textHeader)
	if err != nil {
		return "", err
	}
	if _, err := textPart.Write([]byte(body)); err != nil {
		return "", err
	}

	for _, attachment := range attachments {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", attachment.ContentType)
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.Filename))
		part, err := writer.CreatePart(header)
		if err != nil {
			return "", err
		}
		if _, err := part.Write([]byte(wrapBase64(attachment.Content))); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	buf.Write(parts.Bytes())
	return buf.String(), nil
}

// wrapBase64 按 76 字符折行
func wrapBase64(content []byte) string {
	encoded := base64.StdEncoding.EncodeToString(content)
	var b strings.Builder
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteString("\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	return b.String()
}

func sendMailWithSSL(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	_, err = w.Write(msg)
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func sendMailWithStartTLS(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return err
	}

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailPlain(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendSMTPData(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
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

func normalizeEmailSendError(err error) error {
	if err == nil {
		return nil
	}
	if isEmailRecipientRejected(err) {
		return ErrEmailRecipientRejected
	}
	return err
}

func isEmailRecipientRejected(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	if message == "" {
		return false
	}
	directKeywords := []string{
		"no such recipient",
		"no such user",
		"recipient not found",
		"recipient address rejected",
		"invalid recipient",
		"user unknown",
		"unknown user",
		"unknown mailbox",
		"mailbox unavailable",
	}
	for _, keyword := range directKeywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	if strings.Contains(message, "550") {
		hints := []string{"recipient", "user", "mailbox", "address", "rcpt"}
		for _, hint := range hints {
			if strings.Contains(message, hint) {
				return true
			}
		}
	}
	return false
}
