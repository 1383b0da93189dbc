package workflow

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/Spok95/school-lms/internal/apperr"
)

type validation struct {
	v     *validator.Validate
	trans ut.Translator
}

func newValidation() *validation {
	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	// имена полей в ошибках — как в JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = entranslations.RegisterDefaultTranslations(v, trans)
	return &validation{v: v, trans: trans}
}

// check проверяет теги и возвращает ValidationError с сообщениями по полям.
func (vl *validation) check(s any) error {
	err := vl.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error(), nil)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = fe.Translate(vl.trans)
	}
	return apperr.Validation("invalid input", fields)
}

// fieldPath отрезает имя корневой структуры: "NewUser.email" -> "email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
