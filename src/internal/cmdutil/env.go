package cmdutil

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
)

const (
	cannotParseErr              = "cannot parse"
	envKeyNotSetWhenRequiredErr = "env key not set when required"
	expectedPointerErr          = "expected pointer"
	expectedStructErr           = "expected struct"
	fieldTypeNotAllowedErr      = "field type not allowed"
	invalidTagErr               = "invalid tag, must be KEY,{required},{default=DEFAULT_VALUE}"
)

// Populate populates an object with environment variables, driven by `env`
// struct tags of the form `env:"KEY,required"` or `env:"KEY,default=VALUE"`.
func Populate(object interface{}) error {
	return populateInternal(reflect.ValueOf(object), false, os.Getenv, true)
}

// PopulateDefaults will parse the tags of the given structure and populate
// each field with a default value (if specified in the tags).  This is meant
// for use by tests, which do not want to read from env vars.
func PopulateDefaults(object interface{}) error {
	return populateInternal(reflect.ValueOf(object), false, func(string) string { return "" }, false)
}

func populateInternal(reflectValue reflect.Value, recursive bool, getenv func(string) string, enforceRequired bool) error {
	if reflectValue.Type().Kind() == reflect.Ptr {
		reflectValue = reflectValue.Elem()
	} else if !recursive {
		return errors.Errorf("%s: %v", expectedPointerErr, reflectValue.Type())
	}
	if reflectValue.Type().Kind() != reflect.Struct {
		return errors.Errorf("%s: %v", expectedStructErr, reflectValue.Type())
	}

	for i := 0; i < reflectValue.NumField(); i++ {
		structField := reflectValue.Type().Field(i)
		if structField.Type.Kind() == reflect.Struct {
			if err := populateInternal(reflectValue.Field(i), true, getenv, enforceRequired); err != nil {
				return err
			}
			continue
		}
		tag, err := getEnvTag(structField)
		if err != nil {
			return err
		}
		if tag == nil {
			continue
		}
		value := getenv(tag.key)
		if value == "" {
			value = tag.defaultValue
		}
		if value == "" {
			if tag.required && enforceRequired {
				return errors.Errorf("%s: %s %v", envKeyNotSetWhenRequiredErr, tag.key, reflectValue.Type())
			}
			continue
		}
		parsedValue, err := parseField(structField, value)
		if err != nil {
			return err
		}
		reflectValue.Field(i).Set(reflect.ValueOf(parsedValue))
	}
	return nil
}

type envTag struct {
	key          string
	required     bool
	defaultValue string
}

func getEnvTag(structField reflect.StructField) (*envTag, error) {
	tag := structField.Tag.Get("env")
	if tag == "" {
		return nil, nil
	}
	split := strings.SplitN(tag, ",", 2)
	result := &envTag{
		key: split[0],
	}
	if len(split) == 1 {
		return result, nil
	}
	split = strings.SplitN(strings.TrimSpace(split[1]), "=", 2)
	switch split[0] {
	case "required":
		result.required = true
	case "default":
		if len(split) != 2 {
			return nil, errors.Errorf("%s: %s", invalidTagErr, tag)
		}
		result.defaultValue = split[1]
	default:
		return nil, errors.Errorf("%s: %s", invalidTagErr, tag)
	}
	return result, nil
}

func parseField(structField reflect.StructField, value string) (interface{}, error) {
	if structField.Type == reflect.TypeOf(time.Duration(0)) {
		parsedValue, err := time.ParseDuration(value)
		if err != nil {
			return nil, errors.Wrapf(err, cannotParseErr)
		}
		return parsedValue, nil
	}
	switch fieldKind := structField.Type.Kind(); fieldKind {
	case reflect.Bool:
		parsedValue, err := strconv.ParseBool(value)
		if err != nil {
			return nil, errors.Wrapf(err, cannotParseErr)
		}
		return parsedValue, nil
	case reflect.Int:
		parsedValue, err := strconv.ParseInt(value, 10, 0)
		if err != nil {
			return nil, errors.Wrapf(err, cannotParseErr)
		}
		return int(parsedValue), nil
	case reflect.Int64:
		parsedValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, cannotParseErr)
		}
		return parsedValue, nil
	case reflect.Uint16:
		parsedValue, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, cannotParseErr)
		}
		return uint16(parsedValue), nil
	case reflect.Float64:
		parsedValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, errors.Wrapf(err, cannotParseErr)
		}
		return parsedValue, nil
	case reflect.String:
		return value, nil
	case reflect.Slice:
		if structField.Type.Elem().Kind() != reflect.String {
			return nil, errors.Errorf("%s: %v", fieldTypeNotAllowedErr, fieldKind)
		}
		var parts []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		return parts, nil
	default:
		return nil, errors.Errorf("%s: %v", fieldTypeNotAllowedErr, fieldKind)
	}
}
