package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	apierrors "api/internal/errors"
	"api/internal/helpers"
	"api/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// InitValidator prepares the shared request validator. Field names in
// validation error codes come from the json tag so they match the wire format.
// Must run once before the router starts serving.
func InitValidator() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// validationErrorCodes renders each failed field as FIELD_TAG, for example
// EMAIL_REQUIRED or TOKEN_LEN.
func validationErrorCodes(err error) []string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{apierrors.ErrInvalidRequest}
	}

	codes := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		codes = append(codes, strings.ToUpper(fieldError.Field())+"_"+strings.ToUpper(fieldError.Tag()))
	}
	return codes
}

// Validate decodes and validates the request body as T and stores it for the
// route's handler. Requests failing validation never reach the service layer.
func Validate[T any](next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body T
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			helpers.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
			return
		}

		if err := validate.Struct(body); err != nil {
			helpers.RespondWithError(w, 400, validationErrorCodes(err))
			return
		}

		ctx := context.WithValue(r.Context(), models.BodyKey{}, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ValidateQuery decodes the query string into T through its json tags and
// validates it. Numeric and boolean parameters are coerced before decoding.
func ValidateQuery[T any](next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := map[string]any{}
		for key, values := range r.URL.Query() {
			if len(values) == 0 {
				continue
			}
			params[key] = coerceQueryValue(values[0])
		}

		encoded, err := json.Marshal(params)
		if err != nil {
			helpers.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
			return
		}

		var query T
		if err := json.Unmarshal(encoded, &query); err != nil {
			helpers.RespondWithError(w, 400, []string{apierrors.ErrInvalidRequest})
			return
		}

		if err := validate.Struct(query); err != nil {
			helpers.RespondWithError(w, 400, validationErrorCodes(err))
			return
		}

		ctx := context.WithValue(r.Context(), models.QueryKey{}, query)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func coerceQueryValue(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
