package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

type feeRepository struct {
	db *DB
	tx *tables // set when bound to a transaction; db.mutex is then held by RunInTx
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) read(fn func(t *tables) error) error {
	if repo.tx != nil {
		return fn(repo.tx)
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return fn(repo.db.t)
}

func (repo *feeRepository) write(fn func(t *tables) error) error {
	if repo.tx != nil {
		return fn(repo.tx)
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return fn(repo.db.t)
}

// RunInTx runs fn against a copy of the tables, holding the write lock: transactions are serialized.
// The copy replaces the tables only if fn succeeds.
func (repo *feeRepository) RunInTx(ctx context.Context, fn func(txRepo fee.Repository) error) error {
	if repo.tx != nil {
		return fn(repo)
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	tx := repo.db.t.clone()
	if err := fn(&feeRepository{db: repo.db, tx: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	repo.db.t = tx
	return nil
}

func (repo *feeRepository) QueryFeeTypes(_ context.Context) ([]fee.FeeType, error) {
	fts := make([]fee.FeeType, 0)
	_ = repo.read(func(t *tables) error {
		for _, ft := range t.feeTypes {
			fts = append(fts, ft)
		}
		return nil
	})
	sort.Slice(fts, func(i, j int) bool {
		if fts[i].Name == fts[j].Name {
			return fts[i].ID < fts[j].ID
		}
		return fts[i].Name < fts[j].Name
	})
	return fts, nil
}

func (repo *feeRepository) GetFeeType(_ context.Context, id string) (fee.FeeType, error) {
	var ft fee.FeeType
	err := repo.read(func(t *tables) error {
		var ok bool
		if ft, ok = t.feeTypes[id]; !ok {
			return fee.ErrFeeTypeNotFound
		}
		return nil
	})
	return ft, err
}

func (repo *feeRepository) CreateFeeType(_ context.Context, ft fee.FeeType) (fee.FeeType, error) {
	err := repo.write(func(t *tables) error {
		for _, other := range t.feeTypes {
			if other.Name == ft.Name {
				return fee.ErrFeeTypeExists
			}
		}
		t.feeTypes[ft.ID] = ft
		return nil
	})
	if err != nil {
		return fee.FeeType{}, err
	}
	return ft, nil
}

func (repo *feeRepository) CreateInvoice(_ context.Context, inv fee.Invoice) (fee.Invoice, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.students[inv.StudentID]; !ok {
			return fee.ErrStudentNotFound
		}
		if inv.FeeID.Valid {
			if _, ok := t.feeTypes[inv.FeeID.String]; !ok {
				return fee.ErrFeeTypeNotFound
			}
		}
		t.invoices[inv.ID] = inv
		return nil
	})
	if err != nil {
		return fee.Invoice{}, err
	}
	return inv, nil
}

func (t *tables) view(inv fee.Invoice) fee.InvoiceView {
	student := t.students[inv.StudentID]
	view := fee.InvoiceView{
		Invoice:      inv,
		StudentName:  student.Name,
		StudentEmail: student.Email,
		ClassName:    student.ClassName,
	}
	if inv.FeeID.Valid {
		if ft, ok := t.feeTypes[inv.FeeID.String]; ok {
			view.FeeName.SetValid(ft.Name)
		}
	}
	return view
}

func matchesFilter(view fee.InvoiceView, filter fee.QueryFilter) bool {
	if filter.Status != "" && string(view.Status) != filter.Status {
		return false
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(view.StudentName), search) &&
			!strings.Contains(strings.ToLower(view.StudentEmail), search) {
			return false
		}
	}
	return true
}

// compareViews compares a & b on field: -1 if a < b, 0 if equal and 1 if a > b.
func compareViews(a, b fee.InvoiceView, field string) int {
	switch field {
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "due_date":
		return compareTimes(a.DueDate.Time, b.DueDate.Time)
	case "amount":
		return a.Amount.Cmp(b.Amount)
	case "paid_amount":
		return a.PaidAmount.Cmp(b.PaidAmount)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "student_name":
		return strings.Compare(a.StudentName, b.StudentName)
	}
	return 0
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (repo *feeRepository) QueryInvoices(
	_ context.Context,
	filter fee.QueryFilter,
	ordering []core.DBOrdering,
) ([]fee.InvoiceView, error) {
	views := make([]fee.InvoiceView, 0)
	_ = repo.read(func(t *tables) error {
		for _, inv := range t.invoices {
			if view := t.view(inv); matchesFilter(view, filter) {
				views = append(views, view)
			}
		}
		return nil
	})

	sort.Slice(views, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareViews(views[i], views[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return views[i].ID < views[j].ID
	})
	return views, nil
}

func (repo *feeRepository) GetInvoice(_ context.Context, id string) (fee.InvoiceView, error) {
	var view fee.InvoiceView
	err := repo.read(func(t *tables) error {
		inv, ok := t.invoices[id]
		if !ok {
			return fee.ErrInvoiceNotFound
		}
		view = t.view(inv)
		return nil
	})
	return view, err
}

// LockInvoice only gets the invoice: RunInTx already holds the lock on all tables.
func (repo *feeRepository) LockInvoice(_ context.Context, id string) (fee.Invoice, error) {
	var inv fee.Invoice
	err := repo.read(func(t *tables) error {
		var ok bool
		if inv, ok = t.invoices[id]; !ok {
			return fee.ErrInvoiceNotFound
		}
		return nil
	})
	return inv, err
}

func (repo *feeRepository) AddPaidAmount(
	_ context.Context,
	id string,
	amount decimal.Decimal,
	at time.Time,
) (fee.Invoice, error) {
	var inv fee.Invoice
	err := repo.write(func(t *tables) error {
		var ok bool
		if inv, ok = t.invoices[id]; !ok {
			return fee.ErrInvoiceNotFound
		}
		inv.PaidAmount = inv.PaidAmount.Add(amount)
		inv.Status = fee.NextStatus(inv.PaidAmount, inv.Amount)
		inv.UpdatedAt = at
		t.invoices[id] = inv
		return nil
	})
	return inv, err
}

func (repo *feeRepository) MarkOverdue(_ context.Context, asOf time.Time, at time.Time) (int, error) {
	var n int
	_ = repo.write(func(t *tables) error {
		for id, inv := range t.invoices {
			outstanding := inv.Status == fee.StatusPending || inv.Status == fee.StatusPartial
			if outstanding && inv.DueDate.Valid && inv.DueDate.Time.Before(asOf) {
				inv.Status = fee.StatusOverdue
				inv.UpdatedAt = at
				t.invoices[id] = inv
				n++
			}
		}
		return nil
	})
	return n, nil
}

func (repo *feeRepository) QueryPayments(_ context.Context, invoiceID string) ([]fee.Payment, error) {
	payments := make([]fee.Payment, 0)
	_ = repo.read(func(t *tables) error {
		for _, p := range t.payments {
			if p.InvoiceID == invoiceID {
				payments = append(payments, p)
			}
		}
		return nil
	})
	sort.Slice(payments, func(i, j int) bool {
		if c := compareTimes(payments[i].CreatedAt, payments[j].CreatedAt); c != 0 {
			return c < 0
		}
		return payments[i].ID < payments[j].ID
	})
	return payments, nil
}

func (repo *feeRepository) GetPaymentByKey(_ context.Context, invoiceID, idempotencyKey string) (fee.Payment, error) {
	var payment fee.Payment
	err := repo.read(func(t *tables) error {
		for _, p := range t.payments {
			if p.InvoiceID == invoiceID && p.IdempotencyKey.Valid && p.IdempotencyKey.String == idempotencyKey {
				payment = p
				return nil
			}
		}
		return fee.ErrPaymentNotFound
	})
	return payment, err
}

func (repo *feeRepository) CreatePayment(_ context.Context, p fee.Payment) (fee.Payment, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.invoices[p.InvoiceID]; !ok {
			return fee.ErrInvoiceNotFound
		}
		if p.IdempotencyKey.Valid {
			for _, other := range t.payments {
				if other.InvoiceID == p.InvoiceID && other.IdempotencyKey == p.IdempotencyKey {
					return fee.ErrDuplicatePayment
				}
			}
		}
		t.payments[p.ID] = p
		return nil
	})
	if err != nil {
		return fee.Payment{}, err
	}
	return p, nil
}

func (repo *feeRepository) GetStats(_ context.Context) (fee.Stats, error) {
	stats := fee.Stats{TotalExpected: decimal.Zero, TotalReceived: decimal.Zero}
	_ = repo.read(func(t *tables) error {
		for _, inv := range t.invoices {
			stats.TotalExpected = stats.TotalExpected.Add(inv.Amount)
			stats.TotalReceived = stats.TotalReceived.Add(inv.PaidAmount)
			switch inv.Status {
			case fee.StatusPending, fee.StatusPartial:
				stats.PendingCount++
			case fee.StatusOverdue:
				stats.OverdueCount++
			}
		}
		return nil
	})
	return stats, nil
}
