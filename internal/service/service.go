// Package service holds the business operations behind the HTTP handlers.
package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/quota"
	"github.com/planix/backend/internal/repository"
)

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email", fe.Field()))
		case "min", "max", "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}

// quotaError maps ledger failures onto the API error taxonomy.
func quotaError(err error) error {
	var denied *quota.DeniedError
	switch {
	case errors.As(err, &denied):
		return domain.ErrLimitExceeded(denied.Resource, denied.Limit, denied.Used)
	case errors.Is(err, repository.ErrNotFound):
		return domain.ErrNotFound("account not found")
	default:
		return domain.ErrInternal("failed to check quota", err)
	}
}

func conflict(err error) *domain.AppError {
	e := domain.ErrConflict(err.Error())
	e.Err = err
	return e
}
