package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterStructValidation(validateProductMoney, ProductInput{})
	return v
}

// maxMoney is the first value NUMERIC(12,2) cannot hold.
var maxMoney = decimal.New(1, 10)

// validateProductMoney rejects prices the money columns would round or overflow.
func validateProductMoney(sl validator.StructLevel) {
	in := sl.Current().Interface().(ProductInput)
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{{"CostPrice", in.CostPrice}, {"SalePrice", in.SalePrice}} {
		switch {
		case !f.value.Equal(f.value.Round(2)):
			sl.ReportError(f.value, f.name, f.name, "cents", "")
		case f.value.Abs().GreaterThanOrEqual(maxMoney):
			sl.ReportError(f.value, f.name, f.name, "ltmoney", maxMoney.String())
		}
	}
}

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

// Normalize trims surrounding whitespace so that a blank name fails "required".
func (in *CategoryInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
}

func (in *CategoryInput) Validate() error {
	in.Normalize()
	return validationError(validate.Struct(in))
}

type ProductInput struct {
	Code        *string         `json:"code" validate:"omitempty,max=50"`
	Barcode     *string         `json:"barcode" validate:"omitempty,max=100"`
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description"`
	CostPrice   decimal.Decimal `json:"cost_price" validate:"gte=0"`
	SalePrice   decimal.Decimal `json:"sale_price" validate:"gt=0"`
	Stock       int             `json:"stock"`
	MinStock    int             `json:"min_stock" validate:"gte=0"`
	CategoryID  *int64          `json:"category_id" validate:"omitempty,gt=0"`
	Unit        Unit            `json:"unit" validate:"required,oneof=un kg g l ml pct cx par"`
	Active      *bool           `json:"active"`
	ImageURL    *string         `json:"image_url" validate:"omitempty,max=500,url"`
}

// Normalize trims text fields, turns blank code/barcode into "absent" and defaults the unit.
func (in *ProductInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Code = blankToNil(in.Code)
	in.Barcode = blankToNil(in.Barcode)
	in.ImageURL = blankToNil(in.ImageURL)
	if in.Unit == "" {
		in.Unit = UnitPiece
	}
}

func (in *ProductInput) Validate() error {
	in.Normalize()
	return validationError(validate.Struct(in))
}

// IsActive defaults to true when the caller did not say otherwise.
func (in *ProductInput) IsActive() bool {
	return in.Active == nil || *in.Active
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func validationError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%w: %s is required", database.ErrValidation, fieldName(fe))
		case "gt":
			return fmt.Errorf("%w: %s must be greater than %s", database.ErrValidation, fieldName(fe), fe.Param())
		case "gte":
			return fmt.Errorf("%w: %s must not be less than %s", database.ErrValidation, fieldName(fe), fe.Param())
		case "max":
			return fmt.Errorf("%w: %s must be at most %s characters", database.ErrValidation, fieldName(fe), fe.Param())
		case "cents":
			return fmt.Errorf("%w: %s must have at most 2 decimal places", database.ErrValidation, fieldName(fe))
		case "ltmoney":
			return fmt.Errorf("%w: %s must be less than %s", database.ErrValidation, fieldName(fe), fe.Param())
		case "oneof":
			return fmt.Errorf("%w: %s must be one of [%s]", database.ErrValidation, fieldName(fe), fe.Param())
		}
		return fmt.Errorf("%w: %s is invalid", database.ErrValidation, fieldName(fe))
	}

	return fmt.Errorf("%w: %v", database.ErrValidation, err)
}

var fieldNames = map[string]string{
	"Code":       "code",
	"Barcode":    "barcode",
	"Name":       "name",
	"CostPrice":  "cost price",
	"SalePrice":  "sale price",
	"MinStock":   "minimum stock",
	"CategoryID": "category",
	"Unit":       "unit",
	"ImageURL":   "image url",
}

func fieldName(fe validator.FieldError) string {
	if name, ok := fieldNames[fe.Field()]; ok {
		return name
	}
	return strings.ToLower(fe.Field())
}
