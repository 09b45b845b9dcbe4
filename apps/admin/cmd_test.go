package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	emailsvc "github.com/trezcool/masomo-fees/services/email"
	inmemdb "github.com/trezcool/masomo-fees/storage/database/inmem"
	"github.com/trezcool/masomo-fees/tests"
)

type fixture struct {
	cli  *commandLine
	out  *bytes.Buffer
	db   *inmemdb.DB
	repo fee.Repository
}

func setup(t *testing.T) fixture {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	validate, _ := testutil.NewValidator()

	// set up DB & repos
	db := inmemdb.Open()
	repo := inmemdb.NewFeeRepository(db)
	out := new(bytes.Buffer)

	// start CLI
	return fixture{
		cli: &commandLine{
			conf:   conf,
			db:     new(sqlx.DB), // never connected: migrations & createdb are mocked
			feeSvc: fee.NewService(conf, repo, validate, emailsvc.NewConsoleServiceMock(conf, logger), logger),
			out:    out,
		},
		out:  out,
		db:   db,
		repo: repo,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantAnyErr bool
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" || tt.wantAnyErr {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantAnyErr: // pass
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"seed", "-lol"}, wantErr: errHelp},
		{name: "bad date", args: []string{"markoverdue", "-asof", "31/01/2026"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			f.out.Reset()
			tt.check(t, f.cli.run(args))
			assert.NotEmpty(t, f.out.String(), "usage printed")
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if _, err := fs.Stat(fsys, dir+"/00001_fee_ledger.sql"); err != nil {
			return fmt.Errorf("migrations not embedded: %v", err)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "refunds", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(args))
		})
	}
}

func Test_commandLine_createdb(t *testing.T) {
	f := setup(t)
	errUnreachable := fmt.Errorf("connection refused")

	type extra struct {
		adminPassword string // configured
		typedPassword string
		readErr       error
		createErr     error
	}
	tests := []cliTest{
		{name: "configured password", args: []string{"createdb"}, extra: extra{adminPassword: "s3cret"}},
		{name: "typed password", args: []string{"createdb"}, extra: extra{typedPassword: "typed"}},
		{name: "prompt failure", args: []string{"createdb"}, extra: extra{readErr: os.ErrClosed}, wantErr: os.ErrClosed},
		{name: "create failure", args: []string{"createdb"}, extra: extra{adminPassword: "s3cret", createErr: errUnreachable}, wantErr: errUnreachable},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		ex := tt.extra.(extra)

		t.Run(tt.name, func(t *testing.T) {
			f.cli.conf.Database.AdminPassword = ex.adminPassword
			readPasswordFunc = func(fd int) ([]byte, error) {
				return []byte(ex.typedPassword), ex.readErr
			}
			var gotPassword string
			createDBFunc = func(ctx context.Context, conf *core.Config) error {
				gotPassword = conf.Database.AdminPassword
				return ex.createErr
			}

			tt.check(t, f.cli.run(args))
			if tt.wantErr == nil {
				assert.Equal(t, ex.adminPassword+ex.typedPassword, gotPassword)
			}
			assert.Equal(t, ex.adminPassword, f.cli.conf.Database.AdminPassword, "typed password not kept in the config")
		})
	}
}

func Test_commandLine_seed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	catalog := filepath.Join(t.TempDir(), "fees.json")
	require.NoError(t, os.WriteFile(catalog, []byte(`[
		{"name": "Tuition", "amount": "650.00"},
		{"name": "Sports", "amount": 15, "description": "Sports kit"}
	]`), 0o600))
	invalid := filepath.Join(t.TempDir(), "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`[{"name": "Trip", "amount": -1}]`), 0o600))

	tests := []cliTest{
		{name: "default catalog", args: []string{"seed"}, extra: len(defaultFeeTypes)},
		{name: "default catalog again (skipped)", args: []string{"seed"}, extra: len(defaultFeeTypes)},
		{name: "catalog file", args: []string{"seed", "-file", catalog}, extra: len(defaultFeeTypes) + 1},
		{name: "missing catalog file", args: []string{"seed", "-file", catalog + ".lol"}, wantAnyErr: true},
		{name: "invalid catalog", args: []string{"seed", "-file", invalid}, wantAnyErr: true},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := f.cli.run(args)
			tt.check(t, err)
			if err != nil {
				return
			}

			fts, err := f.cli.feeSvc.ListFeeTypes(ctx)
			require.NoError(t, err)
			assert.Len(t, fts, tt.extra.(int))
		})
	}

	fts, err := f.cli.feeSvc.ListFeeTypes(ctx)
	require.NoError(t, err)
	for _, ft := range fts {
		switch ft.Name {
		case "Tuition":
			assert.Equal(t, "500.00", ft.Amount.StringFixed(2), "existing fee types are not updated")
		case "Sports":
			assert.Equal(t, null.StringFrom("Sports kit"), ft.Description)
		}
	}
}

func Test_commandLine_markoverdue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	student := testutil.AddStudent(f.db, "Jane Doe", "", "")
	due := func(date string) null.Time {
		d, err := time.Parse(dateLayout, date)
		require.NoError(t, err)
		return null.TimeFrom(d)
	}
	early := testutil.CreateInvoice(t, f.repo, fee.Invoice{StudentID: student, Amount: testutil.Dec("10"), DueDate: due("2026-01-15")})
	late := testutil.CreateInvoice(t, f.repo, fee.Invoice{StudentID: student, Amount: testutil.Dec("10"), DueDate: due("2026-02-15")})

	require.NoError(t, f.cli.run([]string{"admin", "markoverdue", "-asof", "2026-02-01"}))
	assert.Contains(t, f.out.String(), "1 invoices due before 2026-02-01 marked overdue")

	for id, want := range map[string]fee.Status{early.ID: fee.StatusOverdue, late.ID: fee.StatusPending} {
		inv, err := f.repo.GetInvoice(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, inv.Status)
	}

	// defaults to today
	f.out.Reset()
	require.NoError(t, f.cli.run([]string{"admin", "markoverdue"}))
	today := time.Now().UTC().Format(dateLayout)
	assert.Contains(t, f.out.String(), "invoices due before "+today+" marked overdue")
}

func Test_commandLine_stats(t *testing.T) {
	f := setup(t)

	student := testutil.AddStudent(f.db, "Jane Doe", "", "")
	testutil.CreateInvoice(t, f.repo, fee.Invoice{StudentID: student, Amount: testutil.Dec("100"), PaidAmount: testutil.Dec("40"), Status: fee.StatusPartial})
	testutil.CreateInvoice(t, f.repo, fee.Invoice{StudentID: student, Amount: testutil.Dec("50")})

	require.NoError(t, f.cli.run([]string{"admin", "stats"}))

	var stats fee.Stats
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &stats))
	assert.Equal(t, "150", stats.TotalExpected.String())
	assert.Equal(t, "40", stats.TotalReceived.String())
	assert.Equal(t, 2, stats.PendingCount)
	assert.Equal(t, 0, stats.OverdueCount)
}
