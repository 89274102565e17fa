package checkout

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
)

// PhoneTag is the validator tag for Vietnamese mobile numbers.
const PhoneTag = "vnphone"

// phonePattern accepts ten-digit Vietnamese mobile numbers: 03x, 05x, 07x,
// 08x and 09x prefixes.
var phonePattern = regexp.MustCompile(`^0[35789][0-9]{8}$`)

// ValidPhone reports whether phone is a Vietnamese mobile number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// RegisterValidations adds the checkout tags to v.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation(PhoneTag, func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
}

// ShippingProfile is the delivery contact required before submitting.
type ShippingProfile struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required,vnphone"`
	Address string `json:"address" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
}

func (p ShippingProfile) normalized() ShippingProfile {
	return ShippingProfile{
		Name:    strings.TrimSpace(p.Name),
		Phone:   strings.TrimSpace(p.Phone),
		Address: strings.TrimSpace(p.Address),
		Email:   strings.TrimSpace(p.Email),
	}
}

// AddressParts is the structured address picked in the profile form.
type AddressParts struct {
	Detail   string `json:"detail"`
	Ward     string `json:"ward"`
	District string `json:"district"`
	Province string `json:"province"`
}

// String joins the non-empty parts as "detail, ward, district, province".
func (a AddressParts) String() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{a.Detail, a.Ward, a.District, a.Province} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ", ")
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	if err := RegisterValidations(v); err != nil {
		panic(fmt.Sprintf("register checkout validations: %v", err))
	}
	return v
}

// validateProfile reports the first offending field, in form order.
func (c *Coordinator) validateProfile(profile ShippingProfile) error {
	err := c.validate.Struct(profile)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping profile")
	}
	first := errs[0]
	message := fmt.Sprintf("%s is invalid", first.Field())
	switch first.Tag() {
	case "required":
		message = fmt.Sprintf("%s is required", first.Field())
	case PhoneTag:
		message = "phone must be a valid Vietnamese mobile number"
	case "email":
		message = "email must be a valid email"
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).
		WithDetails(map[string]any{"field": first.Field(), "rule": first.Tag()})
}
