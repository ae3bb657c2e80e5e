package student

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ibca/academic/core"
)

var (
	pwdMinLen     = 6
	pwdMinLenTag  = "student_pwdminlen"
	pwdMinLenText = "password must contain at least %d characters"
)

// InitValidators registers the student password rule. minLen <= 0 keeps the default of 6.
func InitValidators(validate *validator.Validate, translator ut.Translator, minLen int) {
	if minLen > 0 {
		pwdMinLen = minLen
	}
	validate.RegisterStructValidation(studentStructValidation, SelfRegistration{}, NewStudent{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, fmt.Sprintf(pwdMinLenText, pwdMinLen))
}

func studentStructValidation(sl validator.StructLevel) {
	var pwd string
	switch s := sl.Current().Interface().(type) {
	case SelfRegistration:
		pwd = s.Password
	case NewStudent:
		pwd = s.Password
	}
	if pwd != "" && len([]rune(pwd)) < pwdMinLen {
		sl.ReportError(pwd, "password", "Password", pwdMinLenTag, "")
	}
}
