package external

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"swellwatch/internal/types"
)

// mockSESAPI implements SESAPI for testing.
type mockSESAPI struct {
	sendEmailFunc func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

func (m *mockSESAPI) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	return m.sendEmailFunc(ctx, params, optFns...)
}

func TestSESSend_Success(t *testing.T) {
	var capturedInput *sesv2.SendEmailInput

	mock := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			capturedInput = params
			return &sesv2.SendEmailOutput{
				MessageId: aws.String("ses-msg-abc123"),
			}, nil
		},
	}

	provider := NewSESProviderWithAPI(mock, SESProviderConfig{
		ConfigSetName: "swellwatch-tracking",
	})

	input := SendInput{
		To: "recipient@example.com",
		From: Address{
			Name:    "Swellwatch Alerts",
			Address: "alerts@swellwatch.example",
		},
		Subject:     "Wave Alerts · 2 location(s) · 5 exceedance(s) (>= 0.50m) [Europe/Oslo]",
		BodyHTML:    "<h2>Wave Alerts</h2>",
		BodyText:    "Wave Alerts",
		ReferenceID: "rep_001",
	}

	msgID, err := provider.Send(context.Background(), input)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if msgID != "ses-msg-abc123" {
		t.Errorf("expected message ID ses-msg-abc123, got %s", msgID)
	}

	wantFrom := "Swellwatch Alerts <alerts@swellwatch.example>"
	if aws.ToString(capturedInput.FromEmailAddress) != wantFrom {
		t.Errorf("from = %q, want %q", aws.ToString(capturedInput.FromEmailAddress), wantFrom)
	}

	if len(capturedInput.Destination.ToAddresses) != 1 || capturedInput.Destination.ToAddresses[0] != "recipient@example.com" {
		t.Errorf("unexpected destination: %v", capturedInput.Destination.ToAddresses)
	}

	if aws.ToString(capturedInput.Content.Simple.Subject.Data) != input.Subject {
		t.Errorf("subject = %q", aws.ToString(capturedInput.Content.Simple.Subject.Data))
	}

	if aws.ToString(capturedInput.ConfigurationSetName) != "swellwatch-tracking" {
		t.Errorf("config set = %q", aws.ToString(capturedInput.ConfigurationSetName))
	}

	if len(capturedInput.EmailTags) != 1 || aws.ToString(capturedInput.EmailTags[0].Value) != "rep_001" {
		t.Errorf("unexpected email tags: %v", capturedInput.EmailTags)
	}
}

func TestSESSend_BareFromAddress(t *testing.T) {
	var capturedInput *sesv2.SendEmailInput

	mock := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			capturedInput = params
			return &sesv2.SendEmailOutput{MessageId: aws.String("id")}, nil
		},
	}

	provider := NewSESProviderWithAPI(mock, SESProviderConfig{})

	_, err := provider.Send(context.Background(), SendInput{
		To:       "to@example.com",
		From:     Address{Address: "alerts@swellwatch.example"},
		Subject:  "s",
		BodyText: "t",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if aws.ToString(capturedInput.FromEmailAddress) != "alerts@swellwatch.example" {
		t.Errorf("from = %q, want bare address", aws.ToString(capturedInput.FromEmailAddress))
	}

	if capturedInput.ConfigurationSetName != nil {
		t.Error("expected no configuration set name")
	}
	if len(capturedInput.EmailTags) != 0 {
		t.Errorf("expected no email tags, got %v", capturedInput.EmailTags)
	}
}

func TestSESSend_MessageRejectedMapsToEmailBlocked(t *testing.T) {
	mock := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, &sestypes.MessageRejected{Message: aws.String("address suppressed")}
		},
	}

	provider := NewSESProviderWithAPI(mock, SESProviderConfig{})

	_, err := provider.Send(context.Background(), SendInput{
		To:       "blocked@example.com",
		From:     Address{Address: "alerts@swellwatch.example"},
		Subject:  "s",
		BodyText: "t",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeEmailBlocked {
		t.Errorf("expected %s, got %s", types.ErrCodeEmailBlocked, appErr.Code)
	}
}

func TestSESSend_TooManyRequestsMapsToRateLimited(t *testing.T) {
	mock := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, &sestypes.TooManyRequestsException{Message: aws.String("slow down")}
		},
	}

	provider := NewSESProviderWithAPI(mock, SESProviderConfig{})

	_, err := provider.Send(context.Background(), SendInput{
		To:       "to@example.com",
		From:     Address{Address: "alerts@swellwatch.example"},
		Subject:  "s",
		BodyText: "t",
	})

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamRateLimited {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamRateLimited, appErr.Code)
	}
}

func TestSESSend_SendingPausedMapsToUnavailable(t *testing.T) {
	mock := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, &sestypes.SendingPausedException{Message: aws.String("account paused")}
		},
	}

	provider := NewSESProviderWithAPI(mock, SESProviderConfig{})

	_, err := provider.Send(context.Background(), SendInput{
		To:       "to@example.com",
		From:     Address{Address: "alerts@swellwatch.example"},
		Subject:  "s",
		BodyText: "t",
	})

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamUnavailable {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamUnavailable, appErr.Code)
	}
}

func TestSESSend_UnknownErrorMapsToEmailProvider(t *testing.T) {
	mock := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, fmt.Errorf("dial tcp: i/o timeout")
		},
	}

	provider := NewSESProviderWithAPI(mock, SESProviderConfig{})

	_, err := provider.Send(context.Background(), SendInput{
		To:       "to@example.com",
		From:     Address{Address: "alerts@swellwatch.example"},
		Subject:  "s",
		BodyText: "t",
	})

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamEmailProvider {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamEmailProvider, appErr.Code)
	}
}
