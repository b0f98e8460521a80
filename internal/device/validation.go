package device

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxFieldLength is the maximum number of characters in a name or brand.
const MaxFieldLength = 255

// Validation messages.
const (
	msgNameRequired       = "Device name is required"
	msgBrandNameRequired  = "Brand name is required"
	msgBrandRequired      = "Device brand is required"
	msgStateRequired      = "Device state is required"
	msgNameTooLong        = "Device name should not be longer 255 characters"
	msgBrandTooLong       = "Brand name should not be longer 255 characters"
	msgNameBlank          = "Device name must not be blank"
	msgBrandBlank         = "Brand name must not be blank"
	msgInvalidState       = "Invalid Device state type"
	msgAtLeastOneRequired = "At least one field must be provided"
)

// Field keys used in ValidationErrors.
const (
	FieldName    = "name"
	FieldBrand   = "brand"
	FieldState   = "state"
	FieldMessage = "message"
)

// ValidationErrors maps a request field to the reason it was rejected.
// Object-level failures use the FieldMessage key.
type ValidationErrors map[string]string

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, v[k]))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidDevice, strings.Join(parts, "; "))
}

// Unwrap allows errors.Is(err, ErrInvalidDevice).
func (v ValidationErrors) Unwrap() error {
	return ErrInvalidDevice
}

// errOrNil returns v as an error only when it holds at least one entry.
func (v ValidationErrors) errOrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// CreateRequest carries the fields accepted when creating a device.
type CreateRequest struct {
	Name  string
	Brand string
}

// Validate checks that name and brand are present and within length limits.
func (r CreateRequest) Validate() error {
	errs := ValidationErrors{}
	checkRequired(errs, FieldName, r.Name, msgNameRequired, msgNameTooLong)
	checkRequired(errs, FieldBrand, r.Brand, msgBrandNameRequired, msgBrandTooLong)
	return errs.errOrNil()
}

// PatchRequest carries a partial update. Nil fields are left unchanged.
type PatchRequest struct {
	Name  *string
	Brand *string
	State *string
}

// Validate checks the supplied fields and that at least one is present.
func (r PatchRequest) Validate() error {
	errs := ValidationErrors{}

	if r.Name == nil && r.Brand == nil && r.State == nil {
		errs[FieldMessage] = msgAtLeastOneRequired
		return errs
	}

	if r.Name != nil {
		checkOptional(errs, FieldName, *r.Name, msgNameBlank, msgNameTooLong)
	}
	if r.Brand != nil {
		checkOptional(errs, FieldBrand, *r.Brand, msgBrandBlank, msgBrandTooLong)
	}
	if r.State != nil {
		if _, err := ParseState(*r.State); err != nil {
			errs[FieldState] = msgInvalidState
		}
	}

	return errs.errOrNil()
}

// ChangesNameOrBrand reports whether the patch touches name or brand.
func (r PatchRequest) ChangesNameOrBrand() bool {
	return r.Name != nil || r.Brand != nil
}

// ReplaceRequest carries a full replacement of a device.
//
// CreationTime must be nil when the device exists and must be set when
// the request creates it.
type ReplaceRequest struct {
	Name         string
	Brand        string
	State        *string
	CreationTime *time.Time
}

// Validate checks that name, brand and state are present and valid.
// CreationTime is checked by the registry since its rule depends on
// whether the device exists.
func (r ReplaceRequest) Validate() error {
	errs := ValidationErrors{}
	checkRequired(errs, FieldName, r.Name, msgNameRequired, msgNameTooLong)
	checkRequired(errs, FieldBrand, r.Brand, msgBrandRequired, msgBrandTooLong)

	switch {
	case r.State == nil || strings.TrimSpace(*r.State) == "":
		errs[FieldState] = msgStateRequired
	default:
		if _, err := ParseState(*r.State); err != nil {
			errs[FieldState] = msgInvalidState
		}
	}

	return errs.errOrNil()
}

func checkRequired(errs ValidationErrors, field, value, requiredMsg, tooLongMsg string) {
	if isBlank(value) {
		errs[field] = requiredMsg
		return
	}
	if utf8.RuneCountInString(value) > MaxFieldLength {
		errs[field] = tooLongMsg
	}
}

func checkOptional(errs ValidationErrors, field, value, blankMsg, tooLongMsg string) {
	if isBlank(value) {
		errs[field] = blankMsg
		return
	}
	if utf8.RuneCountInString(value) > MaxFieldLength {
		errs[field] = tooLongMsg
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
