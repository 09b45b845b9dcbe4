package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	logsvc "github.com/trezcool/masomo-fees/services/logger"
	"github.com/trezcool/masomo-fees/storage/database"
	inmemdb "github.com/trezcool/masomo-fees/storage/database/inmem"
)

const dbTimeout = 3 * time.Second

func NewConfig() *core.Config {
	_ = os.Setenv("ENV", "TEST")
	return core.NewConfig()
}

// NewLogger returns a logger reporting nothing.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	return validate, translator
}

// PrepareDB opens, migrates and empties the test database.
// The test is skipped if the database cannot be reached.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	conf := NewConfig()

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		t.Skipf("test database unavailable: %v", err)
	}

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Ping(ctx, db); err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	ResetDB(t, db)
	return db
}

func ResetDB(t *testing.T, db core.DBExecutor) {
	t.Helper()
	if _, err := db.ExecContext(
		context.Background(),
		"TRUNCATE payments, student_fees, fees, users, classes CASCADE",
	); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

// CreateStudent inserts a student (and their class) in the school directory tables.
func CreateStudent(t *testing.T, db core.DBExecutor, name, email, className string) string {
	t.Helper()
	ctx := context.Background()

	var classID null.String
	if className != "" {
		classID = null.StringFrom(uuid.New().String())
		if _, err := db.ExecContext(ctx, "INSERT INTO classes (id, name) VALUES ($1, $2)", classID, className); err != nil {
			t.Fatalf("CreateStudent() failed: %v", err)
		}
	}

	id := uuid.New().String()
	var nullEmail null.String
	if email != "" {
		nullEmail = null.StringFrom(email)
	}
	if _, err := db.ExecContext(
		ctx,
		"INSERT INTO users (id, name, email, role, class_id) VALUES ($1, $2, $3, $4, $5)",
		id, name, nullEmail, core.RoleStudent, classID,
	); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return id
}

// AddStudent registers a student in an in-memory DB.
func AddStudent(db *inmemdb.DB, name, email, className string) string {
	s := inmemdb.Student{ID: uuid.New().String(), Name: name, Email: email}
	if className != "" {
		s.ClassName = null.StringFrom(className)
	}
	db.AddStudent(s)
	return s.ID
}

func CreateFeeType(t *testing.T, repo fee.Repository, name, amount string) fee.FeeType {
	t.Helper()
	ft, err := repo.CreateFeeType(context.Background(), fee.FeeType{
		ID:        uuid.New().String(),
		Name:      name,
		Amount:    decimal.RequireFromString(amount),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		t.Fatalf("CreateFeeType() failed: %v", err)
	}
	return ft
}

// CreateInvoice stores inv as is, defaulting its ID, status (pending), paid amount (0) and timestamps (now).
func CreateInvoice(t *testing.T, repo fee.Repository, inv fee.Invoice) fee.Invoice {
	t.Helper()
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.Status == "" {
		inv.Status = fee.StatusPending
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	if inv.UpdatedAt.IsZero() {
		inv.UpdatedAt = inv.CreatedAt
	}
	inv, err := repo.CreateInvoice(context.Background(), inv)
	if err != nil {
		t.Fatalf("CreateInvoice() failed: %v", err)
	}
	return inv
}

// Dec parses a decimal, for test tables.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
