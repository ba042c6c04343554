package models

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator"
)

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

var genderRule = regexp.MustCompile("^(female|male)$")

func (g *Gender) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*g = Gender(v)
	case []byte:
		*g = Gender(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Gender", value)
	}
	return nil
}

func (g Gender) Value() string {
	return string(g)
}

// CatalogueKey is the key-value store key holding this gender's catalogue.
func (g Gender) CatalogueKey() string {
	return fmt.Sprintf("style_studio_%s_catalogue", g)
}

func ValidateGender(fl validator.FieldLevel) bool {
	return genderRule.MatchString(fl.Field().String())
}

func ValidateGenderRaw(value string) bool {
	return genderRule.MatchString(value)
}
