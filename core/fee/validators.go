package fee

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-fees/core"
)

var (
	invoiceStatusTag  = "invoicestatus"
	invoiceStatusText = "status must be one of: all, " + joinStatuses(Statuses)

	payMethodTag  = "paymethod"
	payMethodText = "payment_method must be one of: " + strings.Join(PaymentMethods, ", ")

	amountOrFeeTag  = "amount_or_fee"
	amountOrFeeText = "one of fee_id or amount is required"
)

// InitValidators registers the fee ledger validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(invoiceStatusTag, invoiceStatusValidation)
	core.RegisterCustomTranslation(validate, translator, invoiceStatusTag, invoiceStatusText)

	_ = validate.RegisterValidation(payMethodTag, payMethodValidation)
	core.RegisterCustomTranslation(validate, translator, payMethodTag, payMethodText)

	validate.RegisterStructValidation(newInvoiceStructValidation, NewInvoice{})
	core.RegisterCustomTranslation(validate, translator, amountOrFeeTag, amountOrFeeText)
}

func joinStatuses(statuses []Status) string {
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	return strings.Join(strs, ", ")
}

// Custom Validators

func invoiceStatusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).IsValid()
}

func payMethodValidation(fl validator.FieldLevel) bool {
	method := fl.Field().String()
	for _, m := range PaymentMethods {
		if method == m {
			return true
		}
	}
	return false
}

// newInvoiceStructValidation checks that one of FeeID or Amount is provided.
func newInvoiceStructValidation(sl validator.StructLevel) {
	if ni, ok := sl.Current().Interface().(NewInvoice); ok {
		if !ni.FeeID.Valid && !ni.Amount.Valid {
			sl.ReportError(ni.Amount, "amount", "Amount", amountOrFeeTag, "")
		}
	}
}
