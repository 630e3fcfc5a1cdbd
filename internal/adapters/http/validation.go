package http

import (
	"github.com/dkeye/peercall/internal/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

func validMediaKind(fl validator.FieldLevel) bool {
	return domain.MediaKind(fl.Field().String()).Valid()
}

func validUserID(fl validator.FieldLevel) bool {
	_, err := domain.NewUserID(fl.Field().String())
	return err == nil
}

// registerValidators adds the mediakind and userid binding tags.
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		log.Warn().Str("module", "adapters.http").Msg("gin validator is not go-playground, custom tags disabled")
		return
	}
	if err := v.RegisterValidation("mediakind", validMediaKind); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("register mediakind validator")
	}
	if err := v.RegisterValidation("userid", validUserID); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("register userid validator")
	}
}
