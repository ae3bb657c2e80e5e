package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/ibca/academic/core"
)

func newValidate() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestNewUser_Validate(t *testing.T) {
	validate := newValidate()
	base := func(pwd string) NewUser {
		return NewUser{
			Name:            "Ayse Demir",
			Username:        " ADemir ",
			Email:           "ayse@dept.test",
			Password:        pwd,
			PasswordConfirm: pwd,
		}
	}

	tests := []struct {
		name    string
		nu      NewUser
		wantTag string
	}{
		{name: "valid", nu: base("Str0ng!Pass")},
		{name: "too short", nu: base("Ab1!"), wantTag: pwdMinLenTag},
		{name: "whitespace", nu: base("Str0ng! Pass"), wantTag: pwdNoSpaceTag},
		{name: "all numeric", nu: base("1234567890"), wantTag: pwdNotAllNumTag},
		{name: "not complex", nu: base("weakpassword"), wantTag: pwdComplexityTag},
		{name: "similar to username", nu: base("Ademir1!"), wantTag: pwdAttrSimTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(validate)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				assert.Equal(t, "ademir", tt.nu.Username)
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			if assert.True(t, ok, "expected validation errors, got %v", err) {
				assert.Equal(t, tt.wantTag, verrs[0].Tag())
				assert.Equal(t, "password", verrs[0].Field())
			}
		})
	}
}

func TestChangePassword_Validate(t *testing.T) {
	validate := newValidate()
	usr := User{Name: "Mehmet Kaya", Username: "mkaya", Email: "mkaya@dept.test"}

	cp := ChangePassword{OldPassword: "x", Password: "Mkaya12!", PasswordConfirm: "Mkaya12!"}
	err := cp.Validate(validate, usr)
	verrs, ok := err.(validator.ValidationErrors)
	if assert.True(t, ok) {
		assert.Equal(t, pwdAttrSimTag, verrs[0].Tag())
	}

	cp = ChangePassword{OldPassword: "x", Password: "Tr!cky9Horse", PasswordConfirm: "Tr!cky9Horse"}
	assert.NoError(t, cp.Validate(validate, usr))
}
