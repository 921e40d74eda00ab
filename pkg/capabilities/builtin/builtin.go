// Package builtin contains the mock capabilities used by the bundled scenarios.
// None of them reach an external system: they print to the console writer and
// return canned results.
package builtin

import (
	"io"

	"github.com/go-go-golems/palaver/pkg/capabilities"
)

const (
	SendEmail        = "send_email"
	LookupEmployee   = "lookup_employee"
	CheckOrderStatus = "check_order_status"
	ProcessRefund    = "process_refund"
	ProcessReturn    = "process_return"
)

// Definitions returns all builtin capabilities writing their side effects to w.
func Definitions(w io.Writer) []capabilities.Definition {
	return []capabilities.Definition{
		NewSendEmail(w),
		NewLookupEmployee(),
		NewCheckOrderStatus(),
		NewProcessRefund(w),
		NewProcessReturn(w),
	}
}

// Register adds all builtin capabilities to table.
func Register(table *capabilities.Table, w io.Writer) error {
	return table.Register(Definitions(w)...)
}
