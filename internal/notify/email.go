package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"swellwatch/internal/external"
	"swellwatch/internal/report"
)

// EmailNotifier delivers a report as a single email through an
// external.EmailProvider. When the sender or recipient address is not
// configured it logs and skips delivery instead of failing, so a run in a
// credentials-free environment still reports its findings in the logs.
type EmailNotifier struct {
	provider external.EmailProvider
	from     external.Address
	to       string
	logger   *slog.Logger
}

// NewEmailNotifier creates an EmailNotifier. provider may be nil when email
// is unconfigured; Deliver then becomes a logged no-op.
func NewEmailNotifier(provider external.EmailProvider, from external.Address, to string, logger *slog.Logger) *EmailNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailNotifier{
		provider: provider,
		from:     from,
		to:       to,
		logger:   logger,
	}
}

// Deliver sends the report. A missing provider or address skips the send.
func (n *EmailNotifier) Deliver(ctx context.Context, rep report.AggregateReport) error {
	if n.provider == nil || n.from.Address == "" || n.to == "" {
		n.logger.WarnContext(ctx, "email not configured; skipping send",
			"subject", rep.Subject,
		)
		return nil
	}

	refID := uuid.New().String()
	msgID, err := n.provider.Send(ctx, external.SendInput{
		From:        n.from,
		To:          n.to,
		Subject:     rep.Subject,
		BodyText:    rep.TextBody,
		BodyHTML:    rep.HTMLBody,
		ReferenceID: refID,
	})
	if err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "alert email sent",
		"to", n.to,
		"subject", rep.Subject,
		"reference_id", refID,
		"provider_message_id", msgID,
	)
	return nil
}
