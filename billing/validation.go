package billing

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ProductionForm is the user-supplied input for creating or updating a
// production. Field order is the order validation messages are reported in.
type ProductionForm struct {
	Date      string          `validate:"required,datetime=2006-01-02"`
	ClientID  ClientID        `validate:"required"`
	Type      ProductionType  `validate:"required"`
	Name      string          `validate:"required"`
	Quantity  int             `validate:"min=1"`
	UnitPrice decimal.Decimal `validate:"gt=0,cents"`
	ProjectID ProjectID
	Notes     string
}

// Normalized returns a copy with surrounding whitespace removed.
func (f ProductionForm) Normalized() ProductionForm {
	f.Date = strings.TrimSpace(f.Date)
	f.ClientID = ClientID(strings.TrimSpace(string(f.ClientID)))
	f.ProjectID = ProjectID(strings.TrimSpace(string(f.ProjectID)))
	f.Type = ProductionType(strings.TrimSpace(string(f.Type)))
	f.Name = strings.TrimSpace(f.Name)
	f.Notes = strings.TrimSpace(f.Notes)
	return f
}

// FormFrom builds a form carrying the editable fields of p.
func FormFrom(p Production) ProductionForm {
	return ProductionForm{
		Date:      p.Date.String(),
		ClientID:  p.ClientID,
		Type:      p.Type,
		Name:      p.Name,
		Quantity:  p.Quantity,
		UnitPrice: p.UnitPrice,
		ProjectID: p.ProjectID,
		Notes:     p.Notes,
	}
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = v.RegisterValidation("cents", validateCents)
	return v
}

// decimalValue lets numeric tags (gt, min) apply to decimal fields.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// validateCents rejects amounts finer than the currency's minor unit.
// The field arrives as float64 through decimalValue; its shortest decimal
// form has the same digits as the submitted amount.
func validateCents(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.Float64 {
		return false
	}
	d := decimal.NewFromFloat(fl.Field().Float())
	return d.Equal(d.Round(currencyPlaces))
}

// tagMessages override fieldMessages for a specific field and tag.
var tagMessages = map[string]string{
	"UnitPrice.cents": "unit price must have at most 2 decimal places",
}

var fieldMessages = map[string]string{
	"Date":      "date is required",
	"ClientID":  "client is required",
	"Type":      "production type is required",
	"Name":      "production name is required",
	"Quantity":  "quantity must be at least 1",
	"UnitPrice": "unit price must be greater than zero",
}

// ValidateForm checks every required field and returns a ValidationError
// listing all failures, or nil. A date that does not parse counts as missing.
func ValidateForm(f ProductionForm) error {
	err := formValidator.Struct(f.Normalized())
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := tagMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg, ok = fieldMessages[fe.Field()]
		}
		if !ok {
			msg = strings.ToLower(fe.Field()) + " is invalid"
		}
		messages = append(messages, msg)
	}
	return &ValidationError{Messages: messages}
}
