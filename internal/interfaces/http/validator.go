package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

// Input validation constants
const (
	MaxNoteLength    = 4000
	MaxMessageLength = 4096
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the custom binding tags and reports fields by their JSON name.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("unexpected validator engine")
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		registerErr = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(strings.ReplaceAll(fl.Field().String(), " ", ""))
		})
	})
	return registerErr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Valid email is required"
	case "phone":
		return "Phone must be valid"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fe.Field() + " is invalid"
}

func fieldErrors(err error) []usecases.FieldError {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make([]usecases.FieldError, 0, len(ve))
		for _, fe := range ve {
			out = append(out, usecases.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return out
	}
	return []usecases.FieldError{{Field: "body", Message: "request body is not valid JSON"}}
}

func abortValidation(c *gin.Context, status int, errs []usecases.FieldError) {
	c.AbortWithStatusJSON(status, gin.H{"message": "Validation failed", "errors": errs})
}

// bindJSON binds and validates the body, answering status on failure.
func bindJSON(c *gin.Context, dst any, status int) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortValidation(c, status, fieldErrors(err))
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body for endpoints whose fields are all optional.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		abortValidation(c, http.StatusBadRequest, fieldErrors(err))
		return false
	}
	return true
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		abortValidation(c, http.StatusBadRequest, []usecases.FieldError{{Field: "id", Message: "id must be a positive integer"}})
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter. ok is false after an
// error response was written.
func queryInt(c *gin.Context, key string) (v int, present, ok bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, false, true
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		abortValidation(c, http.StatusBadRequest, []usecases.FieldError{{Field: key, Message: key + " must be an integer"}})
		return 0, true, false
	}
	return v, true, true
}

// SanitizeString removes null bytes and control characters
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return strings.TrimSpace(s)
}

// TruncateString cuts s to at most maxLen runes.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}
