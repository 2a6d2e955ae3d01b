package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	v    *validator.Validate
	once sync.Once

	groupIDRe = regexp.MustCompile(`^[A-Za-z0-9_\-\.]{1,64}$`)
)

// LedgerExtensions are accepted by the ledger_ext rule.
var LedgerExtensions = []string{".xlsx", ".xlsm", ".csv"}

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		// Report json names so messages match tool input fields
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		// Ledger path must carry a readable extension
		_ = v.RegisterValidation("ledger_ext", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return false
			}
			ext := strings.ToLower(filepath.Ext(s))
			for _, e := range LedgerExtensions {
				if ext == e {
					return true
				}
			}
			return false
		})
		// Merged group ids and prefixes: short, no whitespace
		_ = v.RegisterValidation("group_token", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				return true // pair with required when mandatory
			}
			return groupIDRe.MatchString(s)
		})
	})
	return v
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for MCP tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	err := Validator().Struct(s)
	if err == nil {
		return ""
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "VALIDATION: invalid inputs"
	}
	fe := ve[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("VALIDATION: %s is required", field)
	case "ledger_ext":
		return fmt.Sprintf("VALIDATION: %s must be a ledger file (.xlsx, .xlsm, .csv)", field)
	case "group_token":
		return fmt.Sprintf("VALIDATION: %s must be 1-64 letters, digits, '_', '-' or '.'", field)
	case "oneof":
		return fmt.Sprintf("VALIDATION: %s must be one of [%s]", field, fe.Param())
	case "min", "max", "gte", "lte", "gt", "lt":
		return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("VALIDATION: invalid %s", field)
}

// Struct validates s and returns a plain error, for non-tool callers such
// as configuration loading.
func Struct(s any) error {
	if msg := ValidateStruct(s); msg != "" {
		return errors.New(strings.TrimPrefix(msg, "VALIDATION: "))
	}
	return nil
}
