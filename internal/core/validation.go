package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Custom validation tags.
const (
	AmountTag   = "amount"
	TxnTypeTag  = "txntype"
	TxnDateTag  = "txndate"
	NotBlankTag = "notblank"
)

var customValidations = map[string]validator.Func{
	AmountTag:   validateAmount,
	TxnTypeTag:  validateTxnType,
	TxnDateTag:  validateTxnDate,
	NotBlankTag: validateNotBlank,
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	for tag, fn := range customValidations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validation %q: %v", tag, err))
		}
	}
	// Report JSON names so clients can map errors to their fields.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateAmount(fl validator.FieldLevel) bool {
	_, err := ParseAmount(fl.Field().String())
	return err == nil
}

func validateTxnType(fl validator.FieldLevel) bool {
	_, err := ParseTxnType(fl.Field().String())
	return err == nil
}

func validateTxnDate(fl validator.FieldLevel) bool {
	_, err := ParseDate(fl.Field().String())
	return err == nil
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// FieldError describes one failed constraint on one input field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError is returned when input fails field-level constraints.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// AsValidationError unwraps err into a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ValidateStruct runs the struct tags of data and converts failures to a *ValidationError.
func ValidateStruct(data any) error {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", NotBlankTag:
		return "is required"
	case AmountTag:
		return "must be a number greater than 0"
	case TxnTypeTag:
		return "must be Expense or Income"
	case TxnDateTag:
		return "must be a date in YYYY-MM-DD format"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "email":
		return "must be a valid email address"
	default:
		return "is invalid"
	}
}

// TransactionInput is the create payload.
type TransactionInput struct {
	Type        string      `json:"type" validate:"required,txntype"`
	Amount      json.Number `json:"amount" validate:"required,amount"`
	Description string      `json:"description" validate:"notblank,max=250"`
	Category    string      `json:"category" validate:"notblank,max=100"`
	Date        string      `json:"date" validate:"required,txndate"`
}

// ToTransaction normalizes and validates the input and builds a transaction owned by userID.
// ID and timestamps are assigned by the store.
func (in TransactionInput) ToTransaction(userID string) (Transaction, error) {
	in.Type = strings.TrimSpace(in.Type)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = NormalizeCategory(in.Category)
	in.Date = strings.TrimSpace(in.Date)
	if err := ValidateStruct(in); err != nil {
		return Transaction{}, err
	}

	t := Transaction{
		UserID:      userID,
		Description: in.Description,
		Category:    in.Category,
	}
	var err error
	if t.Type, err = ParseTxnType(in.Type); err != nil {
		return Transaction{}, err
	}
	if t.Amount, err = ParseAmount(in.Amount.String()); err != nil {
		return Transaction{}, err
	}
	if t.Date, err = ParseDate(in.Date); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// TransactionUpdateInput is the partial update payload. The record id travels as
// "_id" or "id"; any "userId" key is ignored because no field maps to it.
type TransactionUpdateInput struct {
	ID          string       `json:"_id" validate:"-"`
	AltID       string       `json:"id" validate:"-"`
	Type        *string      `json:"type" validate:"omitnil,txntype"`
	Amount      *json.Number `json:"amount" validate:"omitnil,amount"`
	Description *string      `json:"description" validate:"omitnil,notblank,max=250"`
	Category    *string      `json:"category" validate:"omitnil,notblank,max=100"`
	Date        *string      `json:"date" validate:"omitnil,txndate"`
}

// RecordID returns the targeted transaction id.
func (in TransactionUpdateInput) RecordID() string {
	if id := strings.TrimSpace(in.ID); id != "" {
		return id
	}
	return strings.TrimSpace(in.AltID)
}

// ToPatch normalizes and validates the present fields.
func (in TransactionUpdateInput) ToPatch() (TransactionPatch, error) {
	if in.Description != nil {
		s := strings.TrimSpace(*in.Description)
		in.Description = &s
	}
	if in.Category != nil {
		s := NormalizeCategory(*in.Category)
		in.Category = &s
	}
	if err := ValidateStruct(in); err != nil {
		return TransactionPatch{}, err
	}

	var p TransactionPatch
	if in.Type != nil {
		t, err := ParseTxnType(*in.Type)
		if err != nil {
			return TransactionPatch{}, err
		}
		p.Type = &t
	}
	if in.Amount != nil {
		m, err := ParseAmount(in.Amount.String())
		if err != nil {
			return TransactionPatch{}, err
		}
		p.Amount = &m
	}
	if in.Date != nil {
		d, err := ParseDate(*in.Date)
		if err != nil {
			return TransactionPatch{}, err
		}
		p.Date = &d
	}
	p.Description = in.Description
	p.Category = in.Category
	return p, nil
}

// ContactInput is the contact form payload.
type ContactInput struct {
	Name    string `json:"name" validate:"notblank,max=200"`
	Email   string `json:"email" validate:"required,email,max=320"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"notblank,max=5000"`
}

// ToContactMessage normalizes and validates the input. userID may be empty.
func (in ContactInput) ToContactMessage(userID string) (ContactMessage, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if err := ValidateStruct(in); err != nil {
		return ContactMessage{}, err
	}
	if in.Subject == "" {
		in.Subject = DefaultSubject
	}
	return ContactMessage{
		UserID:  userID,
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
	}, nil
}
