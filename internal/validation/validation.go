package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ErrCityEmpty is returned when the city is empty or whitespace-only.
var ErrCityEmpty = errors.New("city cannot be empty")

// ErrCityTooLong is returned when the city exceeds the configured maximum length.
var ErrCityTooLong = errors.New("city too long")

// ErrCityInvalidChars is returned when the city contains control characters.
var ErrCityInvalidChars = errors.New("city contains invalid characters")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsControl) < 0
	})
	if err != nil {
		panic(fmt.Sprintf("validation: register nocontrol: %v", err))
	}
	return v
}

// ValidateCity trims input and checks it is non-empty, at most maxLen runes
// (0 disables the bound) and free of control characters. Anything else the
// provider accepts (postcodes, "lat,lon", punctuation) passes through.
// Case is preserved; lowercasing for cache keys is the service's concern.
func ValidateCity(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)

	rules := "required"
	if maxLen > 0 {
		rules += ",max=" + strconv.Itoa(maxLen)
	}
	rules += ",nocontrol"

	if err := validate.Var(s, rules); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			switch fieldErrs[0].Tag() {
			case "required":
				return "", ErrCityEmpty
			case "max":
				return "", ErrCityTooLong
			case "nocontrol":
				return "", ErrCityInvalidChars
			}
		}
		return "", fmt.Errorf("validate city: %w", err)
	}
	return s, nil
}
