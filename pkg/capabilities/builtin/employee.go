package builtin

import (
	"context"

	"github.com/go-go-golems/palaver/pkg/capabilities"
)

// Employee is the record returned by lookup_employee.
type Employee struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Department    string `json:"department"`
	HomeOffice    string `json:"home_office"`
	TravelClass   string `json:"travel_class"`
	CostCenter    string `json:"cost_center"`
	ApprovalLimit int    `json:"approval_limit_eur"`
}

type lookupEmployeeArgs struct{}

// NewLookupEmployee returns the record of the employee in the current session.
// The record is fixed: there is no directory behind it.
func NewLookupEmployee() capabilities.Definition {
	return capabilities.New(LookupEmployee,
		"Looks up the employee record of the traveller in the current session.",
		func(ctx context.Context, _ lookupEmployeeArgs) (any, error) {
			return Employee{
				ID:            "E-1042",
				Name:          "Max Mustermann",
				Department:    "Vertrieb",
				HomeOffice:    "Hamburg",
				TravelClass:   "economy",
				CostCenter:    "CC-4711",
				ApprovalLimit: 1500,
			}, nil
		})
}
