package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
)

var (
	// errors
	ErrFeeTypeNotFound  = core.NewNotFoundError("fee type")
	ErrInvoiceNotFound  = core.NewNotFoundError("invoice")
	ErrStudentNotFound  = core.NewNotFoundError("student")
	ErrPaymentNotFound  = core.NewNotFoundError("payment")
	ErrFeeTypeExists    = core.NewConflictError("a fee type with this name already exists")
	ErrDuplicatePayment = core.NewConflictError("a payment with this idempotency key already exists")

	errNoActor = core.NewValidationError(
		errors.New("no authenticated user to record the payment"),
		core.FieldError{Field: "recorded_by", Error: "this field is required"},
	)

	// OrderingFields are the fields invoices can be ordered by.
	OrderingFields = map[string]bool{
		"created_at":   true,
		"due_date":     true,
		"amount":       true,
		"paid_amount":  true,
		"status":       true,
		"student_name": true,
	}
	defaultOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
)

type (
	Repository interface {
		// RunInTx calls fn with a Repository bound to a single transaction;
		// the transaction is rolled back if fn returns an error.
		RunInTx(ctx context.Context, fn func(txRepo Repository) error) error

		QueryFeeTypes(ctx context.Context) ([]FeeType, error)
		GetFeeType(ctx context.Context, id string) (FeeType, error)
		CreateFeeType(ctx context.Context, ft FeeType) (FeeType, error)

		CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
		// QueryInvoices applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of the student's name or email.
		QueryInvoices(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]InvoiceView, error)
		GetInvoice(ctx context.Context, id string) (InvoiceView, error)
		// LockInvoice gets an invoice and locks it for update until the end of the enclosing transaction.
		LockInvoice(ctx context.Context, id string) (Invoice, error)
		// AddPaidAmount atomically adds amount to the invoice's paid amount and recomputes its status.
		AddPaidAmount(ctx context.Context, id string, amount decimal.Decimal, at time.Time) (Invoice, error)
		// MarkOverdue flags outstanding invoices due strictly before asOf as overdue.
		MarkOverdue(ctx context.Context, asOf time.Time, at time.Time) (int, error)

		QueryPayments(ctx context.Context, invoiceID string) ([]Payment, error)
		GetPaymentByKey(ctx context.Context, invoiceID, idempotencyKey string) (Payment, error)
		CreatePayment(ctx context.Context, p Payment) (Payment, error)

		GetStats(ctx context.Context) (Stats, error)
	}

	Service struct {
		conf     *core.Config
		repo     Repository
		validate *validator.Validate
		mailSvc  core.EmailService
		logger   core.Logger
		now      func() time.Time
	}
)

func NewService(
	conf *core.Config,
	repo Repository,
	validate *validator.Validate,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{
		conf:     conf,
		repo:     repo,
		validate: validate,
		mailSvc:  mailSvc,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// failed logs a failed operation and returns the error to report to the caller.
// Unexpected errors are wrapped into a *core.StoreError.
func (svc *Service) failed(ctx context.Context, op string, err error, fields map[string]interface{}) error {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["op"] = op
	actor, _ := core.ActorFromContext(ctx)

	if core.IsClientError(err) {
		svc.logger.Info(fmt.Sprintf("%s: %v", op, err), fields, actor)
		return err
	}
	err = core.NewStoreError(op, err)
	svc.logger.Error(err.Error(), err, fields, actor)
	return err
}

func (svc *Service) ListFeeTypes(ctx context.Context) ([]FeeType, error) {
	fts, err := svc.repo.QueryFeeTypes(ctx)
	if err != nil {
		return nil, svc.failed(ctx, "listing fee types", err, nil)
	}
	return fts, nil
}

func (svc *Service) CreateFeeType(ctx context.Context, nft NewFeeType) (FeeType, error) {
	const op = "creating fee type"
	if err := nft.Validate(svc.validate); err != nil {
		return FeeType{}, svc.failed(ctx, op, err, nil)
	}

	ft, err := svc.repo.CreateFeeType(ctx, FeeType{
		ID:          uuid.New().String(),
		Name:        nft.Name,
		Amount:      nft.Amount,
		Description: nft.Description,
		CreatedAt:   svc.now(),
	})
	if err != nil {
		return FeeType{}, svc.failed(ctx, op, err, map[string]interface{}{"name": nft.Name})
	}
	svc.logger.Info("fee type created", map[string]interface{}{"fee_id": ft.ID, "name": ft.Name})
	return ft, nil
}

// ListInvoices returns the invoices matching filter, newest first unless ordering says otherwise.
func (svc *Service) ListInvoices(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]InvoiceView, error) {
	const op = "listing invoices"
	if err := filter.Validate(svc.validate); err != nil {
		return nil, svc.failed(ctx, op, err, nil)
	}
	for _, ord := range ordering {
		if !OrderingFields[ord.Field] {
			err := core.NewValidationError(
				errors.Errorf("cannot order by %q", ord.Field),
				core.FieldError{Field: "ordering", Error: fmt.Sprintf("invalid ordering field: %s", ord.Field)},
			)
			return nil, svc.failed(ctx, op, err, nil)
		}
	}
	if len(ordering) == 0 {
		ordering = defaultOrdering
	}

	invs, err := svc.repo.QueryInvoices(ctx, filter, ordering)
	if err != nil {
		return nil, svc.failed(ctx, op, err, map[string]interface{}{"status": filter.Status, "search": filter.Search})
	}
	return invs, nil
}

func (svc *Service) GetInvoice(ctx context.Context, id string) (InvoiceDetail, error) {
	const op = "getting invoice"
	id, err := cleanID(id, ErrInvoiceNotFound)
	if err != nil {
		return InvoiceDetail{}, svc.failed(ctx, op, err, nil)
	}

	view, err := svc.repo.GetInvoice(ctx, id)
	if err != nil {
		return InvoiceDetail{}, svc.failed(ctx, op, err, map[string]interface{}{"invoice_id": id})
	}
	payments, err := svc.repo.QueryPayments(ctx, id)
	if err != nil {
		return InvoiceDetail{}, svc.failed(ctx, op, err, map[string]interface{}{"invoice_id": id})
	}
	return InvoiceDetail{InvoiceView: view, Payments: payments}, nil
}

// CreateInvoice assigns a fee to a student. The fee type's amount is used when ni.Amount is missing.
func (svc *Service) CreateInvoice(ctx context.Context, ni NewInvoice) (Invoice, error) {
	const op = "creating invoice"
	if err := ni.Validate(svc.validate); err != nil {
		return Invoice{}, svc.failed(ctx, op, err, nil)
	}
	fields := map[string]interface{}{"student_id": ni.StudentID, "fee_id": ni.FeeID.String}

	amount := ni.Amount.Decimal
	if ni.FeeID.Valid {
		ft, err := svc.repo.GetFeeType(ctx, ni.FeeID.String)
		if err != nil {
			return Invoice{}, svc.failed(ctx, op, err, fields)
		}
		if !ni.Amount.Valid {
			amount = ft.Amount
		}
	}

	now := svc.now()
	inv, err := svc.repo.CreateInvoice(ctx, Invoice{
		ID:         uuid.New().String(),
		StudentID:  ni.StudentID,
		FeeID:      ni.FeeID,
		Amount:     amount,
		PaidAmount: decimal.Zero,
		Status:     StatusPending,
		DueDate:    ni.dueDate(),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Invoice{}, svc.failed(ctx, op, err, fields)
	}
	fields["invoice_id"] = inv.ID
	fields["amount"] = inv.Amount.String()
	svc.logger.Info("invoice created", fields)
	return inv, nil
}

// RecordPayment records a payment against an invoice and updates the invoice's paid amount and
// status in the same transaction. The invoice is locked for the duration of the transaction so
// concurrent payments on it are serialized.
// A payment carrying an idempotency key already recorded on the invoice is not recorded twice:
// the original receipt is returned with Replayed set. Reusing the key with another amount or
// method fails with ErrDuplicatePayment.
func (svc *Service) RecordPayment(ctx context.Context, np NewPayment) (PaymentReceipt, error) {
	const op = "recording payment"
	actor, ok := core.ActorFromContext(ctx)
	if !ok {
		return PaymentReceipt{}, svc.failed(ctx, op, errNoActor, nil)
	}
	if err := np.Validate(svc.validate); err != nil {
		return PaymentReceipt{}, svc.failed(ctx, op, err, nil)
	}
	fields := map[string]interface{}{"invoice_id": np.InvoiceID, "amount": np.Amount.String()}

	var receipt PaymentReceipt
	err := svc.repo.RunInTx(ctx, func(repo Repository) error {
		inv, err := repo.LockInvoice(ctx, np.InvoiceID)
		if err != nil {
			return err
		}

		if np.IdempotencyKey.Valid {
			p, err := repo.GetPaymentByKey(ctx, inv.ID, np.IdempotencyKey.String)
			switch {
			case err == nil:
				if !p.Amount.Equal(np.Amount) || p.Method != np.Method {
					return ErrDuplicatePayment
				}
				receipt = PaymentReceipt{Payment: p, Invoice: inv, Replayed: true}
				return nil
			case errors.Cause(err) != ErrPaymentNotFound:
				return err
			}
		}

		if err := CheckPayment(inv, np.Amount); err != nil {
			return err
		}

		now := svc.now()
		p, err := repo.CreatePayment(ctx, Payment{
			ID:             uuid.New().String(),
			InvoiceID:      inv.ID,
			Amount:         np.Amount,
			Method:         np.Method,
			Reference:      np.Reference,
			Notes:          np.Notes,
			RecordedBy:     actor.UserID,
			IdempotencyKey: np.IdempotencyKey,
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		if inv, err = repo.AddPaidAmount(ctx, inv.ID, np.Amount, now); err != nil {
			return err
		}
		receipt = PaymentReceipt{Payment: p, Invoice: inv}
		return nil
	})
	if err != nil {
		return PaymentReceipt{}, svc.failed(ctx, op, err, fields)
	}

	if receipt.Replayed {
		fields["payment_id"] = receipt.Payment.ID
		svc.logger.Info("payment replayed", fields, actor)
		return receipt, nil
	}
	fields["payment_id"] = receipt.Payment.ID
	fields["status"] = receipt.Invoice.Status
	svc.logger.Info("payment recorded", fields, actor)
	svc.sendReceipt(ctx, receipt)
	return receipt, nil
}

func (svc *Service) ListPayments(ctx context.Context, invoiceID string) ([]Payment, error) {
	const op = "listing payments"
	invoiceID, err := cleanID(invoiceID, ErrInvoiceNotFound)
	if err != nil {
		return nil, svc.failed(ctx, op, err, nil)
	}
	if _, err := svc.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, svc.failed(ctx, op, err, map[string]interface{}{"invoice_id": invoiceID})
	}

	payments, err := svc.repo.QueryPayments(ctx, invoiceID)
	if err != nil {
		return nil, svc.failed(ctx, op, err, map[string]interface{}{"invoice_id": invoiceID})
	}
	return payments, nil
}

// GetStats summarizes the ledger: outstanding counts both pending and partially paid invoices.
func (svc *Service) GetStats(ctx context.Context) (Stats, error) {
	stats, err := svc.repo.GetStats(ctx)
	if err != nil {
		return Stats{}, svc.failed(ctx, "getting stats", err, nil)
	}
	return stats, nil
}

// MarkOverdue flags pending and partially paid invoices due before asOf as overdue,
// and returns how many invoices were flagged.
func (svc *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	asOf = asOf.UTC()
	n, err := svc.repo.MarkOverdue(ctx, asOf, svc.now())
	if err != nil {
		return 0, svc.failed(ctx, "marking overdue invoices", err, map[string]interface{}{"as_of": asOf})
	}
	svc.logger.Info("overdue invoices marked", map[string]interface{}{"as_of": asOf, "count": n})
	return n, nil
}

// cleanID normalizes an entity ID. Malformed IDs cannot match anything, so notFound is returned.
func cleanID(id string, notFound error) (string, error) {
	uid, err := uuid.Parse(core.CleanString(id))
	if err != nil {
		return "", notFound
	}
	return uid.String(), nil
}
