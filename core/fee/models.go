package fee

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-fees/core"
)

// Status is the payment status of an Invoice.
type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"

	// statusAll is accepted by QueryFilter and means "no status filter".
	statusAll = "all"
)

var (
	Statuses = []Status{StatusPending, StatusPartial, StatusPaid, StatusOverdue}

	// OutstandingStatuses are the statuses of invoices still waiting for (part of) a payment.
	OutstandingStatuses = []Status{StatusPending, StatusPartial}
)

func (s Status) IsValid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Payment methods
const (
	MethodCash         = "cash"
	MethodBankTransfer = "bank_transfer"
	MethodMobileMoney  = "mobile_money"
	MethodCard         = "card"
	MethodCheque       = "cheque"
)

var PaymentMethods = []string{MethodCash, MethodBankTransfer, MethodMobileMoney, MethodCard, MethodCheque}

// DateLayout is the layout of due dates given to NewInvoice.
const DateLayout = "2006-01-02"

// NextStatus returns the status of an invoice of `total` once `paid` has been received on it.
func NextStatus(paid, total decimal.Decimal) Status {
	switch {
	case paid.GreaterThanOrEqual(total):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusPending
	}
}

// CheckPayment applies the payment policy to `inv`:
// settled invoices do not accept payments and an invoice can never be overpaid.
func CheckPayment(inv Invoice, amount decimal.Decimal) error {
	if inv.Status == StatusPaid || inv.PaidAmount.GreaterThanOrEqual(inv.Amount) {
		return core.NewConflictError("invoice is already fully paid")
	}
	if balance := inv.Balance(); amount.GreaterThan(balance) {
		return core.NewConflictError(fmt.Sprintf(
			"payment of %s exceeds the outstanding balance of %s", amount.StringFixed(2), balance.StringFixed(2),
		))
	}
	return nil
}

// FeeType is a catalogue entry with a default amount, e.g. "Tuition".
type FeeType struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Description null.String     `json:"description" db:"description"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"` // UTC
}

// Invoice is an amount owed by one student (a "student fee").
type Invoice struct {
	ID         string          `json:"id" db:"id"`
	StudentID  string          `json:"student_id" db:"student_id"`
	FeeID      null.String     `json:"fee_id" db:"fee_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	PaidAmount decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	Status     Status          `json:"status" db:"status"`
	DueDate    null.Time       `json:"due_date" db:"due_date"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"` // UTC
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"` // UTC
}

func (inv Invoice) Balance() decimal.Decimal {
	return inv.Amount.Sub(inv.PaidAmount)
}

// InvoiceView is an Invoice enriched with its student, class and fee type names.
type InvoiceView struct {
	Invoice
	StudentName  string      `json:"student_name" db:"student_name"`
	StudentEmail string      `json:"student_email" db:"student_email"`
	ClassName    null.String `json:"class_name" db:"class_name"`
	FeeName      null.String `json:"fee_name" db:"fee_name"`
}

// InvoiceDetail is an InvoiceView with its payments history (oldest first).
type InvoiceDetail struct {
	InvoiceView
	Payments []Payment `json:"payments"`
}

// Payment is an immutable record of money received against an Invoice.
type Payment struct {
	ID             string          `json:"id" db:"id"`
	InvoiceID      string          `json:"student_fee_id" db:"student_fee_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Method         string          `json:"payment_method" db:"payment_method"`
	Reference      null.String     `json:"reference" db:"reference"`
	Notes          null.String     `json:"notes" db:"notes"`
	RecordedBy     string          `json:"recorded_by" db:"recorded_by"`
	IdempotencyKey null.String     `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"` // UTC
}

// PaymentReceipt is the outcome of Service.RecordPayment.
// Replayed is set when the payment had already been recorded with the same idempotency key.
type PaymentReceipt struct {
	Payment  Payment `json:"payment"`
	Invoice  Invoice `json:"invoice"`
	Replayed bool    `json:"replayed"`
}

// Stats summarizes the whole ledger.
type Stats struct {
	TotalExpected decimal.Decimal `json:"total_expected" db:"total_expected"`
	TotalReceived decimal.Decimal `json:"total_received" db:"total_received"`
	PendingCount  int             `json:"pending_count" db:"pending_count"`
	OverdueCount  int             `json:"overdue_count" db:"overdue_count"`
}

// NewFeeType contains information needed to create a new FeeType.
type NewFeeType struct {
	Name        string          `json:"name" validate:"required,notblank,max=100"`
	Amount      decimal.Decimal `json:"amount" validate:"dgt0,dscale2"`
	Description null.String     `json:"description" validate:"omitempty,max=500"`
}

func (nft *NewFeeType) Validate(validate *validator.Validate) error {
	nft.Name = core.CleanString(nft.Name)
	cleanNullString(&nft.Description, false)
	return validate.Struct(nft)
}

// NewInvoice contains information needed to create a new Invoice.
// One of FeeID or Amount is required: when Amount is missing, the fee type's amount is used.
type NewInvoice struct {
	StudentID string              `json:"student_id" validate:"required,uuid"`
	FeeID     null.String         `json:"fee_id" validate:"omitempty,uuid"`
	Amount    decimal.NullDecimal `json:"amount" validate:"omitempty,dgt0,dscale2"`
	DueDate   null.String         `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

func (ni *NewInvoice) Validate(validate *validator.Validate) error {
	ni.StudentID = core.CleanString(ni.StudentID, true /* lower */)
	cleanNullString(&ni.FeeID, true)
	cleanNullString(&ni.DueDate, false)
	return validate.Struct(ni)
}

// dueDate returns the validated due date as midnight UTC of that calendar day.
func (ni NewInvoice) dueDate() null.Time {
	if !ni.DueDate.Valid {
		return null.Time{}
	}
	d, err := time.Parse(DateLayout, ni.DueDate.String)
	if err != nil {
		return null.Time{}
	}
	return null.TimeFrom(d)
}

// NewPayment contains information needed to record a Payment against an Invoice.
type NewPayment struct {
	InvoiceID      string          `json:"student_fee_id" validate:"required,uuid"`
	Amount         decimal.Decimal `json:"amount" validate:"dgt0,dscale2"`
	Method         string          `json:"payment_method" validate:"required,paymethod"`
	Reference      null.String     `json:"reference" validate:"omitempty,max=100"`
	Notes          null.String     `json:"notes" validate:"omitempty,max=500"`
	IdempotencyKey null.String     `json:"idempotency_key" validate:"omitempty,max=64"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.InvoiceID = core.CleanString(np.InvoiceID, true /* lower */)
	np.Method = core.CleanString(np.Method, true /* lower */)
	cleanNullString(&np.Reference, false)
	cleanNullString(&np.Notes, false)
	cleanNullString(&np.IdempotencyKey, false)
	return validate.Struct(np)
}

// QueryFilter filters invoices. An empty Status (or "all") matches every status,
// Search does a case-insensitive substring match on the student's name or email.
type QueryFilter struct {
	Status string `json:"status" query:"status" validate:"omitempty,invoicestatus"`
	Search string `json:"search" query:"search" validate:"max=100"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	if qf.Status == statusAll {
		qf.Status = ""
	}
	qf.Search = core.CleanString(qf.Search)
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Clean()
	return validate.Struct(qf)
}

// cleanNullString trims a nullable string, and nulls it when blank.
func cleanNullString(s *null.String, lower bool) {
	if !s.Valid {
		return
	}
	s.String = core.CleanString(s.String, lower)
	if s.String == "" {
		s.Valid = false
	}
}
