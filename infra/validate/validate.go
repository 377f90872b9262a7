package validate

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/payhub/alipay-broker/infra/config"
)

// amountPattern matches gateway decimal strings: "1", "0.50", "1299.99"
var amountPattern = regexp.MustCompile(`^(0|[1-9][0-9]*)(\.[0-9]{1,2})?$`)

// CustomValidate registers custom validation rules on the shared validator
func CustomValidate() {
	v := config.App().Validator

	// amount: decimal string the gateway accepts for total_amount
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		return amountPattern.MatchString(fl.Field().String())
	})
}
