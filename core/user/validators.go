package user

import (
	"bufio"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	appfs "github.com/BISHOP-X/BABCOCK-VPL/fs"
)

var (
	roleTag  = "role"
	roleText = "role must be one of student or lecturer"

	matricTag   = "matric"
	matricText  = "invalid matric number (expected e.g. 21/0345)"
	matricRegex = regexp.MustCompile(`^\d{2}/\d{4,5}$`)

	roleFieldsTag  = "rolefields"
	roleFieldsText = "this field does not apply to the selected role"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"

	commonPasswords     []string
	commonPasswordsOnce sync.Once
)

// InitValidators registers the user validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	commonPasswordsOnce.Do(func() { commonPasswords = loadCommonPasswords(appfs.FS) })

	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
	_ = validate.RegisterValidation(matricTag, matricValidation)
	core.RegisterCustomTranslation(validate, translator, matricTag, matricText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, PasswordReset{})
	core.RegisterCustomTranslation(validate, translator, roleFieldsTag, roleFieldsText)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdNoCommonText)
}

func loadCommonPasswords(fsys fs.FS) []string {
	pwds := make([]string, 0, 64)
	file, err := fsys.Open(appfs.CommonPasswordsFile)
	if err != nil {
		return pwds
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pwd := strings.ToLower(strings.TrimSpace(scanner.Text())); pwd != "" {
			pwds = append(pwds, pwd)
		}
	}
	sort.Strings(pwds)
	return pwds
}

// PasswordReset is used by the admin CLI to replace a forgotten password.
type PasswordReset struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	fullName string
}

// Custom Validators

func roleValidation(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	for _, r := range AllRoles {
		if role == r {
			return true
		}
	}
	return false
}

func matricValidation(fl validator.FieldLevel) bool {
	return matricRegex.MatchString(fl.Field().String())
}

// userStructValidation does struct level validation on NewUser and PasswordReset structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		validateRoleFields(usr, sl)
		validatePassword(usr.Password, usr.FullName, usr.Email, usr.MatricNumber, sl)
	case PasswordReset:
		validatePassword(usr.Password, usr.fullName, usr.Email, "", sl)
	}
}

// validateRoleFields rejects student-only fields on lecturers and vice versa.
func validateRoleFields(nu NewUser, sl validator.StructLevel) {
	switch nu.Role {
	case RoleStudent:
		if nu.StaffID != "" {
			sl.ReportError(nu.StaffID, "staff_id", "StaffID", roleFieldsTag, "")
		}
	case RoleLecturer:
		if nu.MatricNumber != "" {
			sl.ReportError(nu.MatricNumber, "matric_number", "MatricNumber", roleFieldsTag, "")
		}
		if nu.Level != "" {
			sl.ReportError(nu.Level, "level", "Level", roleFieldsTag, "")
		}
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no user attrs similarity
// - no common password
func validatePassword(pwd, name, email, matric string, sl validator.StructLevel) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	var (
		digitCount         int
		hasUpper, hasLower bool
	)

	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	if digitCount == pwdLen {
		reportErr(pwdNotAllNumTag)
		return
	}

	if !(hasUpper && hasLower && digitCount > 0 && specialRegex.MatchString(pwd)) {
		reportErr(pwdComplexityTag)
		return
	}

	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(pass, ""), strings.Split(usrAttr, "")).QuickRatio()
	}
	if getRatio(pwd, name) >= pwdMaxSim ||
		getRatio(pwd, email) >= pwdMaxSim ||
		getRatio(pwd, matric) >= pwdMaxSim {
		reportErr(pwdAttrSimTag)
		return
	}

	lpwd := strings.ToLower(pwd)
	if idx := sort.SearchStrings(commonPasswords, lpwd); idx < len(commonPasswords) && commonPasswords[idx] == lpwd {
		reportErr(pwdNoCommonTag)
	}
}
