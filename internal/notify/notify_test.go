package notify

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestRenderQuestionReply(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	body, err := r.Render(QuestionReply, map[string]any{"name": "Ada <admin>", "title": "Intro"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(body, "Ada &lt;admin&gt;") {
		t.Fatalf("expected escaped name in body: %s", body)
	}
	if !strings.Contains(body, "<strong>Intro</strong>") {
		t.Fatalf("expected title in body: %s", body)
	}
	if _, err := r.Render("missing", nil); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected unknown template, got %v", err)
	}
	if _, err := r.Render(QuestionReply, map[string]any{"name": "Ada"}); err == nil {
		t.Fatal("expected error for missing template data")
	}
}

func TestSMTPSenderComposesMessage(t *testing.T) {
	sender, err := NewSMTPSender(SMTPConfig{Host: "mail.example.com", Port: 2525, Username: "bot@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  []byte
	)
	sender.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err = sender.Send(context.Background(), Message{
		To:       "ada@example.com",
		Subject:  "Question Reply",
		Template: QuestionReply,
		Data:     map[string]any{"name": "Ada", "title": "Intro"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "mail.example.com:2525" || gotFrom != "bot@example.com" {
		t.Fatalf("unexpected envelope: %s %s", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "ada@example.com" {
		t.Fatalf("unexpected recipients: %v", gotTo)
	}
	if !bytes.Contains(gotMsg, []byte("Subject: Question Reply\r\n")) {
		t.Fatalf("missing subject header: %s", gotMsg)
	}
}

func TestSMTPSenderHonoursContext(t *testing.T) {
	sender, err := NewSMTPSender(SMTPConfig{Host: "mail.example.com"})
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	release := make(chan struct{})
	defer close(release)
	sender.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = sender.Send(ctx, Message{To: "ada@example.com", Subject: "s", Template: QuestionReply, Data: map[string]any{"name": "a", "title": "b"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSMTPSenderRejectsHeaderInjection(t *testing.T) {
	sender, err := NewSMTPSender(SMTPConfig{Host: "mail.example.com"})
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	sender.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	err = sender.Send(context.Background(), Message{To: "a@example.com\r\nBcc: x@example.com", Template: QuestionReply})
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected invalid message, got %v", err)
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&buf), zapcore.InfoLevel)
	sender, err := NewLogSender(zap.New(core))
	if err != nil {
		t.Fatalf("NewLogSender: %v", err)
	}
	err = sender.Send(context.Background(), Message{To: "ada@example.com", Subject: "Question Reply", Template: QuestionReply, Data: map[string]any{"name": "Ada", "title": "Intro"}})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(buf.String(), `"template":"question-reply"`) {
		t.Fatalf("unexpected log output: %s", buf.String())
	}
}
