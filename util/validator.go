package util

import (
	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("latitude", validateLatitude)
	validate.RegisterValidation("longitude", validateLongitude)
	validate.RegisterValidation("location_field", validateLocationField)
	validate.RegisterValidation("service_tier", validateServiceTier)
}

func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90 && lat <= 90
}

func validateLongitude(fl validator.FieldLevel) bool {
	lon := fl.Field().Float()
	return lon >= -180 && lon <= 180
}

// pickup or destination; "none" is not addressable.
func validateLocationField(fl validator.FieldLevel) bool {
	f, err := model.ParseLocationField(fl.Field().String())
	return err == nil && f != model.FieldNone
}

func validateServiceTier(fl validator.FieldLevel) bool {
	_, err := model.ParseServiceTier(fl.Field().String())
	return err == nil
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
