package external

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"testing"

	"swellwatch/internal/types"
)

func TestSMTPSend_BuildsMultipartMessage(t *testing.T) {
	var capturedAddr, capturedFrom string
	var capturedTo []string
	var capturedMsg []byte

	provider := NewSMTPProvider(SMTPProviderConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "alerts@swellwatch.example",
		Password: types.SecretString("hunter2"),
	})
	provider.sendFn = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		capturedAddr = addr
		capturedFrom = from
		capturedTo = to
		capturedMsg = msg
		return nil
	}

	input := SendInput{
		To:          "recipient@example.com",
		From:        Address{Name: "Swellwatch Alerts", Address: "alerts@swellwatch.example"},
		Subject:     "Wave Alerts",
		BodyText:    "plain body",
		BodyHTML:    "<div>html body</div>",
		ReferenceID: "rep_42",
	}

	msgID, err := provider.Send(context.Background(), input)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if msgID != "rep_42" {
		t.Errorf("expected reference ID as message ID, got %q", msgID)
	}
	if capturedAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", capturedAddr)
	}
	if capturedFrom != "alerts@swellwatch.example" {
		t.Errorf("envelope from = %q, want bare address", capturedFrom)
	}
	if len(capturedTo) != 1 || capturedTo[0] != "recipient@example.com" {
		t.Errorf("unexpected to list: %v", capturedTo)
	}

	msg := string(capturedMsg)
	for _, want := range []string{
		"From: Swellwatch Alerts <alerts@swellwatch.example>\r\n",
		"To: recipient@example.com\r\n",
		"Subject: Wave Alerts\r\n",
		"MIME-Version: 1.0\r\n",
		"multipart/alternative",
		"Content-Type: text/plain; charset=utf-8",
		"plain body",
		"Content-Type: text/html; charset=utf-8",
		"<div>html body</div>",
		fmt.Sprintf("--%s--\r\n", boundary),
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	// Text part must precede the HTML part.
	if strings.Index(msg, "plain body") > strings.Index(msg, "<div>html body</div>") {
		t.Error("expected text part before HTML part")
	}
}

func TestSMTPSend_TextOnlyWhenNoHTML(t *testing.T) {
	var capturedMsg []byte

	provider := NewSMTPProvider(SMTPProviderConfig{Host: "smtp.example.com", Port: 587})
	provider.sendFn = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		capturedMsg = msg
		return nil
	}

	_, err := provider.Send(context.Background(), SendInput{
		To:       "to@example.com",
		From:     Address{Address: "from@example.com"},
		Subject:  "s",
		BodyText: "text only",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	msg := string(capturedMsg)
	if strings.Contains(msg, "multipart/alternative") {
		t.Error("expected single-part message without HTML body")
	}
	if !strings.Contains(msg, "Content-Type: text/plain; charset=utf-8") {
		t.Errorf("missing plain content type:\n%s", msg)
	}
}

func TestSMTPSend_DeliveryFailureMapsToAppError(t *testing.T) {
	provider := NewSMTPProvider(SMTPProviderConfig{Host: "smtp.example.com", Port: 587})
	provider.sendFn = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return fmt.Errorf("535 authentication failed")
	}

	_, err := provider.Send(context.Background(), SendInput{
		To:       "to@example.com",
		From:     Address{Address: "from@example.com"},
		Subject:  "s",
		BodyText: "t",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeUpstreamEmailProvider {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamEmailProvider, appErr.Code)
	}
}

func TestSMTPSend_CancelledContext(t *testing.T) {
	provider := NewSMTPProvider(SMTPProviderConfig{Host: "smtp.example.com", Port: 587})
	provider.sendFn = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		t.Fatal("sendFn should not be called with cancelled context")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Send(ctx, SendInput{
		To:       "to@example.com",
		From:     Address{Address: "from@example.com"},
		Subject:  "s",
		BodyText: "t",
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
