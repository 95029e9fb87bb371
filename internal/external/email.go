package external

import "context"

// SendInput carries pre-rendered email content for transmission. The
// alerting pipeline renders subject and bodies before delivery is attempted;
// providers transmit the content as-is.
type SendInput struct {
	From        Address
	To          string
	Subject     string
	BodyText    string
	BodyHTML    string
	ReferenceID string
}

// Address is a sender identity.
type Address struct {
	Name    string
	Address string
}

// EmailProvider abstracts the email delivery service. Implementations
// transmit pre-rendered content and return the provider's message ID for
// correlation where one exists.
type EmailProvider interface {
	Send(ctx context.Context, input SendInput) (providerMsgID string, err error)
}
