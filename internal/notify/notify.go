// Package notify delivers rendered alert reports to their destination. The
// alert runner hands a finished report to a Notifier; the implementations here
// either email it directly (EmailNotifier) or enqueue it for the report worker
// (QueueNotifier).
package notify

import (
	"swellwatch/internal/report"
)

// ReportMessage is the queue payload carrying a rendered report from the
// alerter to the report worker. The worker only delivers it; all rendering
// happens upstream.
type ReportMessage struct {
	ReferenceID string `json:"reference_id"`
	Subject     string `json:"subject"`
	TextBody    string `json:"text_body"`
	HTMLBody    string `json:"html_body"`
}

// NewReportMessage wraps an AggregateReport for queueing.
func NewReportMessage(referenceID string, rep report.AggregateReport) ReportMessage {
	return ReportMessage{
		ReferenceID: referenceID,
		Subject:     rep.Subject,
		TextBody:    rep.TextBody,
		HTMLBody:    rep.HTMLBody,
	}
}
