package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/homebase/referral-api/internal/model"
)

// RegisterValidators adds domain enum validators to gin's binding engine.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterValidation("cycle_result", func(fl validator.FieldLevel) bool {
		switch model.CycleResult(fl.Field().String()) {
		case model.CyclePaid, model.CycleFailed, model.CycleVoided:
			return true
		}
		return false
	})

	v.RegisterValidation("flag_status", func(fl validator.FieldLevel) bool {
		switch model.ReviewFlagStatus(fl.Field().String()) {
		case model.ReviewFlagUpheld, model.ReviewFlagDismissed:
			return true
		}
		return false
	})
}
