// Package bind decodes and validates JSON request bodies
package bind

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	perr "captchahub/internal/platform/errors"
	"captchahub/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// MaxBody caps request bodies read by ParseJSON
const MaxBody = 1 << 20

// resultTypes mirrors the captcha result kinds accepted on the wire
var resultTypes = []string{"textual", "positional", "interactive"}

var (
	once  sync.Once
	valid *validator.Validate
	trans ut.Translator
)

// validate returns the shared validator, json tag names are used in messages
func validate() (*validator.Validate, ut.Translator) {
	once.Do(func() {
		loc := en.New()
		trans, _ = ut.New(loc, loc).GetTranslator("en")

		valid = validator.New(validator.WithRequiredStructEnabled())
		valid.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = en_translations.RegisterDefaultTranslations(valid, trans)

		_ = valid.RegisterValidation("task_id", isTaskID)
		_ = valid.RegisterValidation("result_type", isResultType)

		message(valid, "min", "{0} must be at least {1}")
		message(valid, "max", "{0} must be at most {1}")
		message(valid, "task_id", "{0} must be a task id")
		message(valid, "result_type", "{0} must be one of "+strings.Join(resultTypes, ", "))
	})
	return valid, trans
}

// isTaskID accepts the decimal ids the registry hands out
func isTaskID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || len(s) > 20 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isResultType(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	for _, t := range resultTypes {
		if s == t {
			return true
		}
	}
	return false
}

// message overrides the english text for tag, {0} is the field and {1} the param
func message(v *validator.Validate, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}

// Struct validates v and returns a validation error carrying the first failure
func Struct(v any) error {
	val, _ := validate()
	err := val.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		logger.Get().Error().Err(inv).Msg("validator internal error")
		return perr.JSONErrf("validation error")
	}
	_, msg := FieldMessage(err)
	return perr.Newf(perr.ErrorCodeValidation, "%s", msg)
}

// FieldMessage returns the first failing field and its translated message
func FieldMessage(err error) (field, msg string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		_, t := validate()
		return verrs[0].Field(), verrs[0].Translate(t)
	}
	if err == nil {
		return "", ""
	}
	return "", err.Error()
}

// ParseJSON decodes a single JSON object into T and validates it
// unknown fields and trailing data are rejected, GET style methods may omit the body
func ParseJSON[T any](r *http.Request) (T, error) {
	var zero T
	defer func() {
		if err := r.Body.Close(); err != nil {
			logger.Get().Error().Err(err).Msg("failed to close request body")
		}
	}()

	br := bufio.NewReader(io.LimitReader(r.Body, MaxBody))
	if _, err := br.Peek(1); err != nil {
		switch r.Method {
		case http.MethodGet, http.MethodDelete, http.MethodHead, http.MethodOptions:
			return zero, nil
		}
		return zero, perr.JSONErrf("empty body")
	}

	dec := json.NewDecoder(br)
	dec.DisallowUnknownFields()

	var dst T
	if err := dec.Decode(&dst); err != nil {
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if dec.More() {
		return zero, perr.JSONErrf("unexpected trailing data")
	}
	if err := Struct(dst); err != nil {
		return zero, err
	}
	return dst, nil
}
