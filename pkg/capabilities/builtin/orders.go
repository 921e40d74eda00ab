package builtin

import (
	"context"
	"fmt"
	"io"

	"github.com/go-go-golems/palaver/pkg/capabilities"
)

type OrderArgs struct {
	OrderID string `json:"order_id" jsonschema:"description=The order ID"`
}

type ReturnArgs struct {
	OrderID string `json:"order_id" jsonschema:"description=The order ID"`
	Reason  string `json:"reason" jsonschema:"description=Why the order is returned"`
}

func NewCheckOrderStatus() capabilities.Definition {
	return capabilities.New(CheckOrderStatus, "Check the status of an order",
		func(ctx context.Context, in OrderArgs) (any, error) {
			return fmt.Sprintf("Order %s is shipped and will arrive in 2-3 days.", in.OrderID), nil
		})
}

func NewProcessRefund(w io.Writer) capabilities.Definition {
	return capabilities.New(ProcessRefund, "Process a refund for an order",
		func(ctx context.Context, in OrderArgs) (any, error) {
			_, _ = fmt.Fprintf(w, "Processing refund for order %s\n", in.OrderID)
			return fmt.Sprintf("Refund for order %s has been processed successfully.", in.OrderID), nil
		})
}

func NewProcessReturn(w io.Writer) capabilities.Definition {
	return capabilities.New(ProcessReturn, "Process a return for an order",
		func(ctx context.Context, in ReturnArgs) (any, error) {
			_, _ = fmt.Fprintf(w, "Processing return for order %s due to: %s\n", in.OrderID, in.Reason)
			return fmt.Sprintf("Return for order %s has been processed successfully.", in.OrderID), nil
		})
}
