package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-fees/core/fee"
	inmemdb "github.com/trezcool/masomo-fees/storage/database/inmem"
	"github.com/trezcool/masomo-fees/tests"
)

func TestFeeRepository_AddPaidAmount(t *testing.T) {
	db := inmemdb.Open()
	repo := inmemdb.NewFeeRepository(db)
	jane := testutil.AddStudent(db, "Jane Doe", "", "")
	ctx := context.Background()
	now := time.Now().UTC()

	tests := []struct {
		name       string
		status     fee.Status
		payments   []string
		wantPaid   string
		wantStatus fee.Status
	}{
		{name: "partial", status: fee.StatusPending, payments: []string{"40"}, wantPaid: "40", wantStatus: fee.StatusPartial},
		{name: "settled", status: fee.StatusPending, payments: []string{"40", "60"}, wantPaid: "100", wantStatus: fee.StatusPaid},
		{name: "overdue partly paid", status: fee.StatusOverdue, payments: []string{"10"}, wantPaid: "10", wantStatus: fee.StatusPartial},
		{name: "overdue settled", status: fee.StatusOverdue, payments: []string{"100"}, wantPaid: "100", wantStatus: fee.StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := testutil.CreateInvoice(t, repo, fee.Invoice{StudentID: jane, Amount: testutil.Dec("100"), Status: tt.status})

			var err error
			for _, amount := range tt.payments {
				inv, err = repo.AddPaidAmount(ctx, inv.ID, testutil.Dec(amount), now)
				require.NoError(t, err)
			}
			assert.True(t, testutil.Dec(tt.wantPaid).Equal(inv.PaidAmount), "paid %s, want %s", inv.PaidAmount, tt.wantPaid)
			assert.Equal(t, tt.wantStatus, inv.Status)
			assert.Equal(t, fee.NextStatus(inv.PaidAmount, inv.Amount), inv.Status)

			stored, err := repo.GetInvoice(ctx, inv.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
		})
	}

	_, err := repo.AddPaidAmount(ctx, "missing", testutil.Dec("1"), now)
	assert.Equal(t, fee.ErrInvoiceNotFound, err)
}
