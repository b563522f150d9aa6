package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence/academy/core"
)

func TestPasswordPolicy(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "valid", pwd: "Qx7#vLp2!mZr"},
		{name: "too short", pwd: "Qx7#vLp", wantTag: "pwdminlen"},
		{name: "whitespace", pwd: "Qx7# vLp2!mZr", wantTag: "pwdnospace"},
		{name: "all numeric", pwd: "8675309123", wantTag: "pwdnotallnum"},
		{name: "no special", pwd: "Qx7avLp2mZr", wantTag: "pwdcplx"},
		{name: "no upper", pwd: "qx7#vlp2!mzr", wantTag: "pwdcplx"},
		{name: "like the name", pwd: "Lovelace#1", wantTag: "pwdtoosim"},
		{name: "like the email", pwd: "Ada.Lovelace1!", wantTag: "pwdtoosim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := NewUser{
				Name:            "Lovelace",
				Email:           "ada.lovelace@cadence.test",
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
			}
			err := validate.Struct(nu)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, "password", verrs[0].Field())
			assert.Equal(t, tt.wantTag, verrs[0].Tag())
		})
	}

	// resets have no user attributes to compare against
	assert.NoError(t, validate.Struct(ResetUserPassword{UID: "dTE", Token: "t-k", Password: "Lovelace#1", PasswordConfirm: "Lovelace#1"}))
}
