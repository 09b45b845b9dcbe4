package inmemdb

import (
	"sync"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-fees/core/fee"
)

type (
	DB struct {
		mutex sync.RWMutex
		t     *tables
	}

	Student struct {
		ID        string
		Name      string
		Email     string
		ClassName null.String
	}

	tables struct {
		students map[string]Student
		feeTypes map[string]fee.FeeType
		invoices map[string]fee.Invoice
		payments map[string]fee.Payment
	}
)

func Open() *DB {
	return &DB{
		t: &tables{
			students: make(map[string]Student),
			feeTypes: make(map[string]fee.FeeType),
			invoices: make(map[string]fee.Invoice),
			payments: make(map[string]fee.Payment),
		},
	}
}

// AddStudent registers a student invoices can be assigned to.
// Students are owned by the school directory, the ledger only reads them.
func (db *DB) AddStudent(s Student) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.t.students[s.ID] = s
}

// clone returns a copy of the tables that can be modified without affecting the original.
func (t *tables) clone() *tables {
	c := &tables{
		students: make(map[string]Student, len(t.students)),
		feeTypes: make(map[string]fee.FeeType, len(t.feeTypes)),
		invoices: make(map[string]fee.Invoice, len(t.invoices)),
		payments: make(map[string]fee.Payment, len(t.payments)),
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.feeTypes {
		c.feeTypes[k] = v
	}
	for k, v := range t.invoices {
		c.invoices[k] = v
	}
	for k, v := range t.payments {
		c.payments[k] = v
	}
	return c
}
