// Package main is the entrypoint for the Report Worker Lambda function.
//
// The Report Worker consumes rendered wave alert reports from the report SQS
// queue and delivers them by email. The alerter publishes fully rendered
// content (subject, text body, HTML body), so the worker is a thin transport
// layer: unmarshal, send, report partial batch failures for retry.
//
// Cold start (main):
//  1. Initialize structured logger.
//  2. Load configuration and the AWS SDK config.
//  3. Initialize the email provider (SES or SMTP).
//  4. Register handler and call lambda.Start.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"swellwatch/internal/config"
	"swellwatch/internal/external"
	"swellwatch/internal/notify"
)

// Handler holds the dependencies for the report worker Lambda handler.
type Handler struct {
	provider external.EmailProvider
	from     external.Address
	to       string
	logger   *slog.Logger
}

// Handle processes an SQS event containing one or more report messages.
// Messages are processed independently; ones that fail delivery are returned
// in batchItemFailures so SQS retries only those.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process report message",
				"message_id", record.MessageId,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processMessage delivers a single queued report. A message body that does
// not parse is a permanent failure and is acknowledged rather than retried.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg notify.ReportMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal report message",
			"message_id", record.MessageId,
			"error", err,
		)
		return nil
	}

	providerMsgID, err := h.provider.Send(ctx, external.SendInput{
		From:        h.from,
		To:          h.to,
		Subject:     msg.Subject,
		BodyText:    msg.TextBody,
		BodyHTML:    msg.HTMLBody,
		ReferenceID: msg.ReferenceID,
	})
	if err != nil {
		return fmt.Errorf("sending report email: %w", err)
	}

	h.logger.InfoContext(ctx, "report email sent",
		"reference_id", msg.ReferenceID,
		"provider_message_id", providerMsgID,
		"subject", msg.Subject,
	)
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("report worker initializing (cold start)")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Email.ToAddress == "" {
		logger.Error("EMAIL_TO_ADDRESS must be set for the report worker")
		os.Exit(1)
	}

	provider, err := newEmailProvider(*cfg, logger)
	if err != nil {
		logger.Error("failed to build email provider", "error", err)
		os.Exit(1)
	}

	handler := &Handler{
		provider: provider,
		from:     external.Address{Name: cfg.Email.FromName, Address: cfg.Email.FromAddress},
		to:       cfg.Email.ToAddress,
		logger:   logger,
	}

	logger.Info("report worker initialized",
		"email_provider", cfg.Email.Provider,
		"from_address", cfg.Email.FromAddress,
		"to_address", cfg.Email.ToAddress,
	)

	// Local mode: read a JSON SQS event from stdin instead of starting the
	// Lambda runtime. This enables local testing without the Lambda RIE.
	if cfg.Environment == "local" {
		if err := runLocal(handler, logger); err != nil {
			logger.Error("local run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler.Handle)
}

// newEmailProvider builds the delivery provider. Unlike the alerter, the
// worker exists only to send email, so "none" is a configuration error.
func newEmailProvider(cfg config.Config, logger *slog.Logger) (external.EmailProvider, error) {
	switch cfg.Email.Provider {
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS SDK config: %w", err)
		}
		return external.NewSESProvider(awsCfg, external.SESProviderConfig{
			ConfigSetName: cfg.Email.SESConfigSet,
			Logger:        logger,
		}), nil
	case "smtp":
		if cfg.Email.SMTPHost == "" {
			return nil, fmt.Errorf("EMAIL_PROVIDER=smtp requires SMTP_HOST")
		}
		return external.NewSMTPProvider(external.SMTPProviderConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
		}), nil
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be ses or smtp for the report worker, got %q", cfg.Email.Provider)
	}
}

func runLocal(handler *Handler, logger *slog.Logger) error {
	logger.Info("APP_ENV=local: reading SQS event from stdin")
	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	var sqsEvent events.SQSEvent
	if err := json.Unmarshal(payload, &sqsEvent); err != nil {
		return fmt.Errorf("parsing stdin as SQS event: %w", err)
	}
	response, err := handler.Handle(context.Background(), sqsEvent)
	if err != nil {
		return err
	}
	logger.Info("local run complete",
		"records_processed", len(sqsEvent.Records),
		"failures", len(response.BatchItemFailures),
	)
	return nil
}
