package services

import (
	"regexp"
	"strings"

	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/errs"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func requiredText(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errs.Validation("%s is required", field)
	}
	return value, nil
}

func optionalText(field string, value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed, err := requiredText(field, *value)
	if err != nil {
		return nil, errs.Validation("%s cannot be empty", field)
	}
	return &trimmed, nil
}

func validEmail(value string) (string, error) {
	value = strings.TrimSpace(value)
	if !emailPattern.MatchString(value) {
		return "", errs.Validation("email must be a valid address")
	}
	return value, nil
}

func validDate(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errs.Validation("%s is required", field)
	}
	if _, err := entities.ParseDate(value); err != nil {
		return "", errs.Validation("%s must be a YYYY-MM-DD date", field)
	}
	return value, nil
}

func requiredID(field string, id *FlexID) (uint, error) {
	if id == nil || *id == 0 {
		return 0, errs.Validation("%s is required and must be a positive number", field)
	}
	return uint(*id), nil
}

func optionalID(field string, id *FlexID) (*uint, error) {
	if id == nil {
		return nil, nil
	}
	v, err := requiredID(field, id)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
