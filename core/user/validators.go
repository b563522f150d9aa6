package user

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/cadence/academy/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"

	statusTag  = "userstatus"
	statusText = "invalid status"

	pwdMinLen    = 8
	pwdMaxSim    = .7
	specialRegex = regexp.MustCompile("[^A-Za-z0-9]")
)

// passwordRule is one clause of the password policy. Rules run in order; the first failing one is reported.
type passwordRule struct {
	tag, text string
	ok        func(pwd string, attrs []string) bool
}

var passwordPolicy = []passwordRule{
	{
		tag:  "pwdminlen",
		text: fmt.Sprintf("password must contain at least %d characters", pwdMinLen),
		ok:   func(pwd string, _ []string) bool { return utf8.RuneCountInString(pwd) >= pwdMinLen },
	},
	{
		tag:  "pwdnospace",
		text: "password must not contain whitespace",
		ok:   func(pwd string, _ []string) bool { return strings.IndexFunc(pwd, unicode.IsSpace) < 0 },
	},
	{
		tag:  "pwdnotallnum",
		text: "password cannot be entirely numeric",
		ok:   func(pwd string, _ []string) bool { return strings.IndexFunc(pwd, notDigit) >= 0 },
	},
	{
		tag:  "pwdcplx",
		text: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
		ok: func(pwd string, _ []string) bool {
			return strings.IndexFunc(pwd, unicode.IsUpper) >= 0 &&
				strings.IndexFunc(pwd, unicode.IsLower) >= 0 &&
				strings.IndexFunc(pwd, unicode.IsDigit) >= 0 &&
				specialRegex.MatchString(pwd)
		},
	},
	{
		tag:  "pwdtoosim",
		text: "password cannot be similar to user attributes",
		ok: func(pwd string, attrs []string) bool {
			chars := strings.Split(strings.ToLower(pwd), "")
			for _, attr := range attrs {
				if attr == "" {
					continue
				}
				m := difflib.NewMatcher(chars, strings.Split(strings.ToLower(attr), ""))
				if m.QuickRatio() >= pwdMaxSim {
					return false
				}
			}
			return true
		},
	},
}

func notDigit(r rune) bool { return !unicode.IsDigit(r) }

// InitValidators registers the user validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, oneOfValidation(AllRoles))
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(statusTag, oneOfValidation(AllStatuses))
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	validate.RegisterStructValidation(passwordStructValidation, NewUser{}, UpdateUser{}, ResetUserPassword{})
	for _, rule := range passwordPolicy {
		core.RegisterCustomTranslation(validate, translator, rule.tag, rule.text)
	}
}

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, a := range allowed {
			if val == a {
				return true
			}
		}
		return false
	}
}

// passwordStructValidation applies the password policy to the structs that set a password.
// UpdateUser only when a new password is given.
func passwordStructValidation(sl validator.StructLevel) {
	switch v := sl.Current().Interface().(type) {
	case NewUser:
		checkPassword(sl, v.Password, v.Name, v.Email)
	case UpdateUser:
		if v.Password != "" {
			checkPassword(sl, v.Password, v.Name, v.Email)
		}
	case ResetUserPassword:
		checkPassword(sl, v.Password)
	}
}

// checkPassword reports the first policy rule pwd breaks. attrs are user attributes the password
// must not resemble; an email also contributes its local part.
func checkPassword(sl validator.StructLevel, pwd string, attrs ...string) {
	for _, attr := range attrs {
		if local, _, ok := strings.Cut(attr, "@"); ok {
			attrs = append(attrs, local)
		}
	}
	for _, rule := range passwordPolicy {
		if !rule.ok(pwd, attrs) {
			sl.ReportError(pwd, "password", "Password", rule.tag, "")
			return
		}
	}
}
