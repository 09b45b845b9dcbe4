package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

const (
	pqForeignKeyViolation = "foreign_key_violation"
	pqUniqueViolation     = "unique_violation"
)

var (
	feeTypeColumns = []string{"id", "name", "amount", "description", "created_at"}
	invoiceColumns = []string{
		"id", "student_id", "fee_id", "amount", "paid_amount", "status", "due_date", "created_at", "updated_at",
	}
	invoiceViewColumns = []string{
		"sf.id", "sf.student_id", "sf.fee_id", "sf.amount", "sf.paid_amount", "sf.status", "sf.due_date",
		"sf.created_at", "sf.updated_at",
		"u.name AS student_name", "COALESCE(u.email, '') AS student_email", "c.name AS class_name", "f.name AS fee_name",
	}
	paymentColumns = []string{
		"id", "student_fee_id", "amount", "payment_method", "reference", "notes", "recorded_by", "idempotency_key",
		"created_at",
	}

	// invoice ordering fields -> columns
	orderingColumns = map[string]string{
		"created_at":   "sf.created_at",
		"due_date":     "sf.due_date",
		"amount":       "sf.amount",
		"paid_amount":  "sf.paid_amount",
		"status":       "sf.status",
		"student_name": "u.name",
	}

	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

type feeRepository struct {
	db   core.DB // nil when bound to a transaction
	exec core.DBExecutor
	psql sq.StatementBuilderType
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(db core.DB) *feeRepository {
	return &feeRepository{
		db:   db,
		exec: db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (repo *feeRepository) RunInTx(ctx context.Context, fn func(txRepo fee.Repository) error) error {
	if repo.db == nil { // already in a transaction
		return fn(repo)
	}
	return core.RunInTx(ctx, repo.db, func(tx core.DBTransactor) error {
		return fn(&feeRepository{exec: tx, psql: repo.psql})
	})
}

// pqError returns the condition name and constraint of a postgres error ("", "" for other errors).
func pqError(err error) (string, string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name(), pqErr.Constraint
	}
	return "", ""
}

func trapNoRowsErr(err error, notFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return err
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (repo *feeRepository) QueryFeeTypes(ctx context.Context) ([]fee.FeeType, error) {
	q, args, err := repo.psql.Select(feeTypeColumns...).From("fees").OrderBy("name", "id").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	fts := make([]fee.FeeType, 0)
	if err = repo.exec.SelectContext(ctx, &fts, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting fee types")
	}
	return fts, nil
}

func (repo *feeRepository) GetFeeType(ctx context.Context, id string) (fee.FeeType, error) {
	if !isUUID(id) {
		return fee.FeeType{}, fee.ErrFeeTypeNotFound
	}
	q, args, err := repo.psql.Select(feeTypeColumns...).From("fees").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fee.FeeType{}, errors.Wrap(err, "building query")
	}
	var ft fee.FeeType
	if err = repo.exec.GetContext(ctx, &ft, q, args...); err != nil {
		return fee.FeeType{}, trapNoRowsErr(errors.Wrap(err, "getting fee type"), fee.ErrFeeTypeNotFound)
	}
	return ft, nil
}

func (repo *feeRepository) CreateFeeType(ctx context.Context, ft fee.FeeType) (fee.FeeType, error) {
	q, args, err := repo.psql.Insert("fees").
		Columns(feeTypeColumns...).
		Values(ft.ID, ft.Name, ft.Amount, ft.Description, ft.CreatedAt).
		ToSql()
	if err != nil {
		return fee.FeeType{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.exec.ExecContext(ctx, q, args...); err != nil {
		if cond, _ := pqError(err); cond == pqUniqueViolation {
			return fee.FeeType{}, fee.ErrFeeTypeExists
		}
		return fee.FeeType{}, errors.Wrap(err, "inserting fee type")
	}
	return ft, nil
}

func (repo *feeRepository) CreateInvoice(ctx context.Context, inv fee.Invoice) (fee.Invoice, error) {
	q, args, err := repo.psql.Insert("student_fees").
		Columns(invoiceColumns...).
		Values(
			inv.ID, inv.StudentID, inv.FeeID, inv.Amount, inv.PaidAmount, string(inv.Status), inv.DueDate,
			inv.CreatedAt, inv.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fee.Invoice{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.exec.ExecContext(ctx, q, args...); err != nil {
		if cond, constraint := pqError(err); cond == pqForeignKeyViolation {
			if constraint == "student_fees_fee_id_fkey" {
				return fee.Invoice{}, fee.ErrFeeTypeNotFound
			}
			return fee.Invoice{}, fee.ErrStudentNotFound
		}
		return fee.Invoice{}, errors.Wrap(err, "inserting invoice")
	}
	return inv, nil
}

func (repo *feeRepository) selectInvoiceViews() sq.SelectBuilder {
	return repo.psql.Select(invoiceViewColumns...).
		From("student_fees sf").
		Join("users u ON u.id = sf.student_id").
		LeftJoin("classes c ON c.id = u.class_id").
		LeftJoin("fees f ON f.id = sf.fee_id")
}

func (repo *feeRepository) QueryInvoices(
	ctx context.Context,
	filter fee.QueryFilter,
	ordering []core.DBOrdering,
) ([]fee.InvoiceView, error) {
	query := repo.selectInvoiceViews()
	if filter.Status != "" {
		query = query.Where(sq.Eq{"sf.status": filter.Status})
	}
	if filter.Search != "" {
		pattern := "%" + likeEscaper.Replace(filter.Search) + "%"
		query = query.Where(sq.Or{sq.ILike{"u.name": pattern}, sq.ILike{"u.email": pattern}})
	}
	for _, ord := range ordering {
		if col, ok := orderingColumns[ord.Field]; ok {
			query = query.OrderBy(core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	query = query.OrderBy("sf.id")

	q, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	views := make([]fee.InvoiceView, 0)
	if err = repo.exec.SelectContext(ctx, &views, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting invoices")
	}
	return views, nil
}

func (repo *feeRepository) GetInvoice(ctx context.Context, id string) (fee.InvoiceView, error) {
	if !isUUID(id) {
		return fee.InvoiceView{}, fee.ErrInvoiceNotFound
	}
	q, args, err := repo.selectInvoiceViews().Where(sq.Eq{"sf.id": id}).ToSql()
	if err != nil {
		return fee.InvoiceView{}, errors.Wrap(err, "building query")
	}
	var view fee.InvoiceView
	if err = repo.exec.GetContext(ctx, &view, q, args...); err != nil {
		return fee.InvoiceView{}, trapNoRowsErr(errors.Wrap(err, "getting invoice"), fee.ErrInvoiceNotFound)
	}
	return view, nil
}

func (repo *feeRepository) LockInvoice(ctx context.Context, id string) (fee.Invoice, error) {
	if !isUUID(id) {
		return fee.Invoice{}, fee.ErrInvoiceNotFound
	}
	q, args, err := repo.psql.Select(invoiceColumns...).
		From("student_fees").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fee.Invoice{}, errors.Wrap(err, "building query")
	}
	var inv fee.Invoice
	if err = repo.exec.GetContext(ctx, &inv, q, args...); err != nil {
		return fee.Invoice{}, trapNoRowsErr(errors.Wrap(err, "locking invoice"), fee.ErrInvoiceNotFound)
	}
	return inv, nil
}

func (repo *feeRepository) AddPaidAmount(
	ctx context.Context,
	id string,
	amount decimal.Decimal,
	at time.Time,
) (fee.Invoice, error) {
	q, args, err := repo.psql.Update("student_fees").
		Set("paid_amount", sq.Expr("paid_amount + ?", amount)).
		Set("status", sq.Expr(
			"CASE WHEN paid_amount + ? >= amount THEN ? ELSE ? END",
			amount, string(fee.StatusPaid), string(fee.StatusPartial),
		)).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(invoiceColumns, ", ")).
		ToSql()
	if err != nil {
		return fee.Invoice{}, errors.Wrap(err, "building query")
	}
	var inv fee.Invoice
	if err = repo.exec.GetContext(ctx, &inv, q, args...); err != nil {
		return fee.Invoice{}, trapNoRowsErr(errors.Wrap(err, "updating invoice"), fee.ErrInvoiceNotFound)
	}
	return inv, nil
}

func (repo *feeRepository) MarkOverdue(ctx context.Context, asOf time.Time, at time.Time) (int, error) {
	outstanding := make([]string, len(fee.OutstandingStatuses))
	for i, status := range fee.OutstandingStatuses {
		outstanding[i] = string(status)
	}
	q, args, err := repo.psql.Update("student_fees").
		Set("status", string(fee.StatusOverdue)).
		Set("updated_at", at).
		Where(sq.Eq{"status": outstanding}).
		Where(sq.Lt{"due_date": asOf}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.exec.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "updating invoices")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting updated invoices")
}

func (repo *feeRepository) QueryPayments(ctx context.Context, invoiceID string) ([]fee.Payment, error) {
	payments := make([]fee.Payment, 0)
	if !isUUID(invoiceID) {
		return payments, nil
	}
	q, args, err := repo.psql.Select(paymentColumns...).
		From("payments").
		Where(sq.Eq{"student_fee_id": invoiceID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	if err = repo.exec.SelectContext(ctx, &payments, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}
	return payments, nil
}

func (repo *feeRepository) GetPaymentByKey(ctx context.Context, invoiceID, idempotencyKey string) (fee.Payment, error) {
	q, args, err := repo.psql.Select(paymentColumns...).
		From("payments").
		Where(sq.Eq{"student_fee_id": invoiceID, "idempotency_key": idempotencyKey}).
		ToSql()
	if err != nil {
		return fee.Payment{}, errors.Wrap(err, "building query")
	}
	var p fee.Payment
	if err = repo.exec.GetContext(ctx, &p, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return fee.Payment{}, fee.ErrPaymentNotFound
		}
		return fee.Payment{}, errors.Wrap(err, "getting payment")
	}
	return p, nil
}

func (repo *feeRepository) CreatePayment(ctx context.Context, p fee.Payment) (fee.Payment, error) {
	q, args, err := repo.psql.Insert("payments").
		Columns(paymentColumns...).
		Values(
			p.ID, p.InvoiceID, p.Amount, p.Method, p.Reference, p.Notes, p.RecordedBy, p.IdempotencyKey,
			p.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fee.Payment{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.exec.ExecContext(ctx, q, args...); err != nil {
		switch cond, _ := pqError(err); cond {
		case pqForeignKeyViolation:
			return fee.Payment{}, fee.ErrInvoiceNotFound
		case pqUniqueViolation:
			return fee.Payment{}, fee.ErrDuplicatePayment
		}
		return fee.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo *feeRepository) GetStats(ctx context.Context) (fee.Stats, error) {
	q, args, err := repo.psql.Select(
		"COALESCE(SUM(amount), 0) AS total_expected",
		"COALESCE(SUM(paid_amount), 0) AS total_received",
	).
		Column(sq.Expr("COUNT(*) FILTER (WHERE status IN (?, ?)) AS pending_count",
			string(fee.StatusPending), string(fee.StatusPartial))).
		Column(sq.Expr("COUNT(*) FILTER (WHERE status = ?) AS overdue_count", string(fee.StatusOverdue))).
		From("student_fees").
		ToSql()
	if err != nil {
		return fee.Stats{}, errors.Wrap(err, "building query")
	}
	var stats fee.Stats
	if err = repo.exec.GetContext(ctx, &stats, q, args...); err != nil {
		return fee.Stats{}, errors.Wrap(err, "getting stats")
	}
	return stats, nil
}
