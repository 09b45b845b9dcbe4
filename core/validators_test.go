package core

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

type sample struct {
	Name   string              `json:"name" validate:"required,notblank"`
	Amount decimal.Decimal     `json:"amount" validate:"dgt0,dscale2"`
	Extra  decimal.NullDecimal `json:"extra" validate:"omitempty,dgt0"`
	Ref    null.String         `json:"ref" validate:"omitempty,uuid"`
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	InitValidators(validate, translator)
	return validate, translator
}

func TestInitValidators(t *testing.T) {
	validate, translator := newValidator()
	amount := decimal.RequireFromString

	tests := []struct {
		name       string
		s          sample
		wantFields map[string]string
	}{
		{name: "valid", s: sample{Name: "Tuition", Amount: amount("10.50")}},
		{name: "valid with optionals", s: sample{
			Name: "Tuition", Amount: amount("10"),
			Extra: decimal.NullDecimal{Decimal: amount("1"), Valid: true},
			Ref:   null.StringFrom("4b2d1c9e-2a54-4a25-9a8e-0e7a3b1f2c11"),
		}},
		{name: "trailing zeros", s: sample{Name: "Tuition", Amount: amount("10.500")}},
		{
			name: "blank name", s: sample{Name: "  ", Amount: amount("10")},
			wantFields: map[string]string{"name": "this field cannot be blank"},
		},
		{
			name: "missing name", s: sample{Amount: amount("10")},
			wantFields: map[string]string{"name": "this field is required"},
		},
		{
			name: "zero amount", s: sample{Name: "Tuition"},
			wantFields: map[string]string{"amount": "amount must be greater than zero"},
		},
		{
			name: "sub-cent amount", s: sample{Name: "Tuition", Amount: amount("0.001")},
			wantFields: map[string]string{"amount": "amount cannot have more than 2 decimal places"},
		},
		{
			name: "negative optional", s: sample{
				Name: "Tuition", Amount: amount("1"), Extra: decimal.NullDecimal{Decimal: amount("-1"), Valid: true},
			},
			wantFields: map[string]string{"extra": "extra must be greater than zero"},
		},
		{
			name: "malformed UUID", s: sample{Name: "Tuition", Amount: amount("1"), Ref: null.StringFrom("lol")},
			wantFields: map[string]string{"ref": "ref must be a valid UUID"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.s)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			if assert.True(t, ok, "validate.Struct() error = %v, want validator.ValidationErrors", err) {
				assert.Equal(t, tt.wantFields, TranslateErrors(verrs, translator))
			}
			assert.True(t, IsValidationError(err))
			assert.True(t, IsClientError(err))
		})
	}
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Jane Doe", CleanString("  Jane Doe \n"))
	assert.Equal(t, "jane@school.test", CleanString(" Jane@School.test ", true))
	assert.Equal(t, "", CleanString("   "))
}
