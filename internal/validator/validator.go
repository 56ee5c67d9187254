// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("hex_color", validateHexColor)
		_ = v.RegisterValidation("budget_period", validateBudgetPeriod)
		_ = v.RegisterValidation("living_option", validateLivingOption)
		_ = v.RegisterValidation("rollover_policy", validateRolloverPolicy)
		_ = v.RegisterValidation("link_strategy", validateLinkStrategy)
		_ = v.RegisterValidation("notification_channel", validateNotificationChannel)
	}
}

func validateHexColor(fl validator.FieldLevel) bool {
	return hexColorRegex.MatchString(fl.Field().String())
}

func validateBudgetPeriod(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "weekly", "monthly", "yearly":
		return true
	}
	return false
}

func validateLivingOption(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "home", "away":
		return true
	}
	return false
}

func validateRolloverPolicy(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "reset", "carry_forward":
		return true
	}
	return false
}

func validateLinkStrategy(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "first_fit", "oldest_first":
		return true
	}
	return false
}

func validateNotificationChannel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "email", "sms":
		return true
	}
	return false
}
