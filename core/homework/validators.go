package homework

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ibca/academic/core"
)

var (
	windowTag     = "after_start"
	errWindowText = "due date must be after start date"
)

// InitValidators registers the homework struct level rules.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(newAssignmentValidation, NewAssignment{})
	core.RegisterCustomTranslation(validate, translator, windowTag, errWindowText)
}

func newAssignmentValidation(sl validator.StructLevel) {
	na, ok := sl.Current().Interface().(NewAssignment)
	if !ok || na.StartDate.IsZero() || na.DueDate.IsZero() {
		return
	}
	if !na.DueDate.After(na.StartDate) {
		sl.ReportError(na.DueDate, "due_date", "DueDate", windowTag, "")
	}
}
