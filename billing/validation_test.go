package billing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palmapsd/production-ledger/billing"
)

func validForm() billing.ProductionForm {
	return billing.ProductionForm{
		Date:      "2026-01-25",
		ClientID:  "c-1",
		Type:      billing.TypeFeed,
		Name:      "Post lançamento",
		Quantity:  3,
		UnitPrice: decimal.RequireFromString("150.00"),
	}
}

func TestValidateForm_Valid(t *testing.T) {
	assert.NoError(t, billing.ValidateForm(validForm()))
}

func TestValidateForm_CollectsEveryMessageInOrder(t *testing.T) {
	// GIVEN: an empty form
	err := billing.ValidateForm(billing.ProductionForm{})

	// THEN: every failing field is reported, in form order
	var verr *billing.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{
		"date is required",
		"client is required",
		"production type is required",
		"production name is required",
		"quantity must be at least 1",
		"unit price must be greater than zero",
	}, verr.Messages)
	assert.Equal(t, billing.ReasonValidation, billing.Classify(err))
}

func TestValidateForm_SingleFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*billing.ProductionForm)
		want   string
	}{
		{"zero quantity", func(f *billing.ProductionForm) { f.Quantity = 0 }, "quantity must be at least 1"},
		{"negative quantity", func(f *billing.ProductionForm) { f.Quantity = -2 }, "quantity must be at least 1"},
		{"zero price", func(f *billing.ProductionForm) { f.UnitPrice = decimal.Zero }, "unit price must be greater than zero"},
		{"negative price", func(f *billing.ProductionForm) { f.UnitPrice = decimal.NewFromInt(-1) }, "unit price must be greater than zero"},
		{"blank name", func(f *billing.ProductionForm) { f.Name = "   " }, "production name is required"},
		{"unparseable date", func(f *billing.ProductionForm) { f.Date = "25/01/2026" }, "date is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)
			assert.Equal(t, []string{tt.want}, billing.Messages(billing.ValidateForm(f)))
		})
	}
}

func TestComputeTotal(t *testing.T) {
	assert.True(t, decimal.RequireFromString("450.00").Equal(billing.ComputeTotal(3, decimal.RequireFromString("150.00"))))
	assert.True(t, decimal.RequireFromString("0.30").Equal(billing.ComputeTotal(3, decimal.RequireFromString("0.10"))))
	assert.Equal(t, "181.00", billing.ComputeTotal(2, decimal.RequireFromString("90.50")).StringFixed(2))
}

func TestValidateForm_UnitPriceCents(t *testing.T) {
	tests := []struct {
		price string
		want  []string
	}{
		{"150.00", nil},
		{"0.01", nil},
		{"99.9", nil},
		{"0.004", []string{"unit price must have at most 2 decimal places"}},
		{"150.005", []string{"unit price must have at most 2 decimal places"}},
		{"0", []string{"unit price must be greater than zero"}},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			f := validForm()
			f.Quantity = 1
			f.UnitPrice = decimal.RequireFromString(tt.price)

			err := billing.ValidateForm(f)

			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, billing.Messages(err))
		})
	}
}
