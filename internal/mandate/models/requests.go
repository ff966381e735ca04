package models

import (
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"

	dErrors "bureau/pkg/domain-errors"
)

const (
	fieldRole      = "role"
	fieldStartDate = "startDate"
	fieldEndDate   = "endDate"
	fieldIsActive  = "isActive"
)

var knownFields = map[string]struct{}{
	fieldRole:      {},
	fieldStartDate: {},
	fieldEndDate:   {},
	fieldIsActive:  {},
}

// MandateInput is a decoded JSON request body. Values keep their JSON types so
// type mismatches can be reported per field instead of failing the decode.
type MandateInput map[string]any

// ValidatedMandate is a mandate payload that passed field validation.
type ValidatedMandate struct {
	Role      Role `json:"role"`
	StartDate Date `json:"startDate"`
	EndDate   Date `json:"endDate"`
	IsActive  bool `json:"isActive"`
}

// MandatePatch carries the fields present in a partial update.
type MandatePatch struct {
	Role      *Role
	StartDate *Date
	EndDate   *Date
	IsActive  *bool
}

// TouchesDates reports whether the patch moves either end of the interval.
func (p *MandatePatch) TouchesDates() bool {
	return p.StartDate != nil || p.EndDate != nil
}

// ValidateMandate checks a create payload. Every invalid field is reported;
// validation never stops at the first failure.
func ValidateMandate(input MandateInput) (*ValidatedMandate, error) {
	var errs *multierror.Error
	errs = multierror.Append(errs, unknownFields(input)...)

	out := &ValidatedMandate{IsActive: true}

	role, err := roleField(input, true)
	errs = appendField(errs, err)
	if role != nil {
		out.Role = *role
	}

	start, err := dateField(input, fieldStartDate, true)
	errs = appendField(errs, err)
	end, err := dateField(input, fieldEndDate, true)
	errs = appendField(errs, err)
	if start != nil && end != nil {
		out.StartDate, out.EndDate = *start, *end
		errs = appendField(errs, checkOrder(*start, *end))
	}

	active, err := boolField(input, fieldIsActive)
	errs = appendField(errs, err)
	if active != nil {
		out.IsActive = *active
	}

	if err := toValidationError(errs); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateMandateUpdate checks a partial update payload. Absent fields are left
// nil; present fields follow the same rules as ValidateMandate.
func ValidateMandateUpdate(input MandateInput) (*MandatePatch, error) {
	var errs *multierror.Error
	errs = multierror.Append(errs, unknownFields(input)...)

	patch := &MandatePatch{}
	var err error

	patch.Role, err = roleField(input, false)
	errs = appendField(errs, err)
	patch.StartDate, err = dateField(input, fieldStartDate, false)
	errs = appendField(errs, err)
	patch.EndDate, err = dateField(input, fieldEndDate, false)
	errs = appendField(errs, err)
	if patch.StartDate != nil && patch.EndDate != nil {
		errs = appendField(errs, checkOrder(*patch.StartDate, *patch.EndDate))
	}
	patch.IsActive, err = boolField(input, fieldIsActive)
	errs = appendField(errs, err)

	if err := toValidationError(errs); err != nil {
		return nil, err
	}
	return patch, nil
}

// CheckInterval rejects an interval whose end precedes its start.
func CheckInterval(start, end Date) error {
	if err := checkOrder(start, end); err != nil {
		var fe *dErrors.FieldError
		errors.As(err, &fe)
		return dErrors.NewValidation("invalid mandate", []dErrors.FieldError{*fe})
	}
	return nil
}

func checkOrder(start, end Date) error {
	if end.Before(start) {
		return &dErrors.FieldError{Field: fieldEndDate, Message: "endDate must not be before startDate"}
	}
	return nil
}

func unknownFields(input MandateInput) []error {
	var errs []error
	for _, key := range slices.Sorted(maps.Keys(input)) {
		if _, ok := knownFields[key]; !ok {
			errs = append(errs, &dErrors.FieldError{Field: key, Message: key + " is not allowed"})
		}
	}
	return errs
}

func roleField(input MandateInput, required bool) (*Role, error) {
	raw, ok := input[fieldRole]
	if !ok {
		if required {
			return nil, &dErrors.FieldError{Field: fieldRole, Message: "role is required"}
		}
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, &dErrors.FieldError{Field: fieldRole, Message: "role must be a string"}
	}
	if strings.TrimSpace(s) == "" {
		return nil, &dErrors.FieldError{Field: fieldRole, Message: "role must not be empty"}
	}
	role := Role(s)
	if !role.IsValid() {
		return nil, &dErrors.FieldError{Field: fieldRole, Message: "role must be one of " + roleList()}
	}
	return &role, nil
}

func dateField(input MandateInput, field string, required bool) (*Date, error) {
	raw, ok := input[field]
	if !ok {
		if required {
			return nil, &dErrors.FieldError{Field: field, Message: field + " is required"}
		}
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, &dErrors.FieldError{Field: field, Message: field + " must be a valid date"}
	}
	d, err := ParseDate(s)
	if err != nil {
		return nil, &dErrors.FieldError{Field: field, Message: field + " must be a valid date"}
	}
	return &d, nil
}

func boolField(input MandateInput, field string) (*bool, error) {
	raw, ok := input[field]
	if !ok {
		return nil, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return nil, &dErrors.FieldError{Field: field, Message: field + " must be a boolean"}
	}
	return &b, nil
}

func appendField(errs *multierror.Error, err error) *multierror.Error {
	if err == nil {
		return errs
	}
	return multierror.Append(errs, err)
}

func toValidationError(errs *multierror.Error) error {
	if errs.ErrorOrNil() == nil {
		return nil
	}
	fields := make([]dErrors.FieldError, 0, len(errs.Errors))
	for _, err := range errs.Errors {
		var fe *dErrors.FieldError
		if errors.As(err, &fe) {
			fields = append(fields, *fe)
		}
	}
	return dErrors.NewValidation("invalid mandate", fields)
}

func roleList() string {
	names := make([]string, len(Roles))
	for i, r := range Roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
