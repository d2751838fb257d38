package ledger

import (
	"github.com/shopspring/decimal"
)

type PaymentRequestResponse struct {
	Message string         `json:"message"`
	Balance *BalanceTotals `json:"balance"`
}

type OutstandingResponse struct {
	Employees []UnpaidRecord  `json:"employees"`
	Total     decimal.Decimal `json:"total"`
}

func ToOutstandingResponse(records []UnpaidRecord) OutstandingResponse {
	resp := OutstandingResponse{Employees: records, Total: decimal.Zero}
	if resp.Employees == nil {
		resp.Employees = []UnpaidRecord{}
	}
	for _, r := range records {
		resp.Total = resp.Total.Add(r.TotalSalary)
	}
	return resp
}
