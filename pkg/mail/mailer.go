package mail

import "context"

// Message is a single outbound email.
type Message struct {
	ToName    string
	ToEmail   string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Mailer delivers messages to a single recipient. Implementations must be
// safe for concurrent use; delivery failures are returned, never panicked.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
