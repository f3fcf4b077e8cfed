// Package validation provides the shared request validator with English messages.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/noah-isme/uni-enrollment-api/internal/catalog"
)

// CourseCodeTag validates course codes such as MAT101.
const CourseCodeTag = "course_code"

var (
	once   sync.Once
	engine *validator.Validate
	trans  ut.Translator
)

// New returns the process-wide validator. It reports field names using their json tags.
func New() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation(CourseCodeTag, func(fl validator.FieldLevel) bool {
			return catalog.ValidCode(fl.Field().String())
		})

		locale := en.New()
		trans, _ = ut.New(locale, locale).GetTranslator("en")
		_ = enTranslations.RegisterDefaultTranslations(v, trans)
		_ = v.RegisterTranslation(CourseCodeTag, trans, func(t ut.Translator) error {
			return t.Add(CourseCodeTag, "{0} must be three uppercase letters followed by three digits", true)
		}, func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(CourseCodeTag, fe.Field())
			return msg
		})
		engine = v
	})
	return engine
}

// Translate maps each failing field to a readable message. Errors that are
// not validation errors are returned under "detail".
func Translate(err error) map[string]string {
	New()
	fields := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}
	fields["detail"] = err.Error()
	return fields
}

// Message flattens Translate into a single sentence ordered by field name.
func Message(err error) string {
	fields := Translate(err)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fields[k])
	}
	return strings.Join(parts, "; ")
}
