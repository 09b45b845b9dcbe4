package core

import (
	"database/sql/driver"
	"reflect"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

var (
	// custom validation tags & texts
	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"

	decimalPositiveTag  = "dgt0"
	decimalPositiveText = "{0} must be greater than zero"

	decimalScale2Tag  = "dscale2"
	decimalScale2Text = "{0} cannot have more than 2 decimal places"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"

	uuidTag  = "uuid"
	uuidText = "{0} must be a valid UUID"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// validate nullable & decimal fields by their SQL value (nil when null)
	validate.RegisterCustomTypeFunc(valuerTypeFunc,
		decimal.Decimal{}, decimal.NullDecimal{}, null.String{}, null.Time{})

	// register custom validators
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(decimalPositiveTag, decimalPositiveValidation)
	RegisterCustomTranslation(validate, translator, decimalPositiveTag, decimalPositiveText)

	_ = validate.RegisterValidation(decimalScale2Tag, decimalScale2Validation)
	RegisterCustomTranslation(validate, translator, decimalScale2Tag, decimalScale2Text)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, uuidTag, uuidText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// TranslateErrors maps validation errors to their translated messages, keyed by (JSON) field name.
func TranslateErrors(errs validator.ValidationErrors, translator ut.Translator) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, verror := range errs {
		fields[verror.Field()] = verror.Translate(translator)
	}
	return fields
}

func valuerTypeFunc(field reflect.Value) interface{} {
	if valuer, ok := field.Interface().(driver.Valuer); ok {
		if val, err := valuer.Value(); err == nil {
			return val
		}
	}
	return nil
}

// Custom Global Validators

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// decimalPositiveValidation only allows decimals strictly greater than zero.
func decimalPositiveValidation(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.IsPositive()
}

// decimalScale2Validation only allows decimals with at most 2 (significant) decimal places.
func decimalScale2Validation(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.Equal(d.Round(2))
}
