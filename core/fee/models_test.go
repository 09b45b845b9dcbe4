package fee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-fees/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name        string
		paid, total string
		want        Status
	}{
		{name: "nothing paid", paid: "0", total: "100", want: StatusPending},
		{name: "part paid", paid: "40", total: "100", want: StatusPartial},
		{name: "one cent short", paid: "99.99", total: "100", want: StatusPartial},
		{name: "fully paid", paid: "100", total: "100", want: StatusPaid},
		{name: "fully paid, different scale", paid: "100.00", total: "100", want: StatusPaid},
		{name: "over paid", paid: "101", total: "100", want: StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStatus(dec(tt.paid), dec(tt.total)))
		})
	}
}

func TestCheckPayment(t *testing.T) {
	tests := []struct {
		name         string
		inv          Invoice
		amount       string
		wantConflict bool
	}{
		{name: "pending", inv: Invoice{Amount: dec("100"), PaidAmount: dec("0"), Status: StatusPending}, amount: "40"},
		{name: "settles partial", inv: Invoice{Amount: dec("100"), PaidAmount: dec("40"), Status: StatusPartial}, amount: "60"},
		{name: "overdue", inv: Invoice{Amount: dec("100"), PaidAmount: dec("0"), Status: StatusOverdue}, amount: "100"},
		{
			name: "paid", inv: Invoice{Amount: dec("100"), PaidAmount: dec("100"), Status: StatusPaid}, amount: "1",
			wantConflict: true,
		},
		{
			name: "overpayment", inv: Invoice{Amount: dec("100"), PaidAmount: dec("40"), Status: StatusPartial}, amount: "60.01",
			wantConflict: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPayment(tt.inv, dec(tt.amount))
			if tt.wantConflict {
				assert.True(t, core.IsConflict(err), "CheckPayment() error = %v, want ConflictError", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckPayment_message(t *testing.T) {
	inv := Invoice{Amount: dec("100"), PaidAmount: dec("40"), Status: StatusPartial}
	err := CheckPayment(inv, dec("70"))
	assert.EqualError(t, err, "payment of 70.00 exceeds the outstanding balance of 60.00")
}

func TestQueryFilter_Clean(t *testing.T) {
	tests := []struct {
		name   string
		filter QueryFilter
		want   QueryFilter
	}{
		{name: "empty", filter: QueryFilter{}, want: QueryFilter{}},
		{name: "all", filter: QueryFilter{Status: "all"}, want: QueryFilter{}},
		{name: "ALL", filter: QueryFilter{Status: " ALL "}, want: QueryFilter{}},
		{name: "status", filter: QueryFilter{Status: "Paid"}, want: QueryFilter{Status: "paid"}},
		{name: "search", filter: QueryFilter{Search: "  Jane Doe "}, want: QueryFilter{Search: "Jane Doe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Clean()
			assert.Equal(t, tt.want, tt.filter)
		})
	}
}

func TestInvoice_Balance(t *testing.T) {
	inv := Invoice{Amount: dec("150.50"), PaidAmount: dec("50.25")}
	assert.True(t, inv.Balance().Equal(dec("100.25")))
}
