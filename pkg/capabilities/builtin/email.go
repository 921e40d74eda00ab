package builtin

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-go-golems/palaver/pkg/capabilities"
)

type SendEmailArgs struct {
	To      string `json:"to" jsonschema:"description=Who to send the email to"`
	Subject string `json:"subject" jsonschema:"description=The subject of the email."`
	Body    string `json:"body" jsonschema:"description=The text body of the email."`
}

// NewSendEmail simulates sending an email by printing it to w.
func NewSendEmail(w io.Writer) capabilities.Definition {
	var mu sync.Mutex
	return capabilities.New(SendEmail, "Sends an email.", func(ctx context.Context, in SendEmailArgs) (any, error) {
		if in.To == "" {
			return nil, capabilities.NewCapabilityError(SendEmail, capabilities.ErrorTypeValidation, "recipient is empty")
		}
		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintf(w, "\n--- Mock Email Sending ---\nTo: %s\nSubject: %s\nBody: %s\n--- End of Email ---\n\n",
			in.To, in.Subject, in.Body)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("Email to %s with subject %q sent.", in.To, in.Subject), nil
	})
}
