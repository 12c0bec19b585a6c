/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/connectbridge/pkg/logger"
)

var (
	ErrDstMustBeNonNilPointer   = errors.New("dst must be a non-nil pointer")
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
	errUnsupportedFieldKind     = errors.New("unsupported field kind")
)

//nolint:gochecknoglobals // reflect type constants
var (
	jsonUnmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	durationType        = reflect.TypeOf(time.Duration(0))
)

// EnvConfigLoader loads configuration from environment variables. Nested
// struct fields join their json tags with underscores, so with prefix
// CONNECTBRIDGE_ the field Connect.BaseURL (json "connect"/"base_url") is
// read from CONNECTBRIDGE_CONNECT_BASE_URL. <prefix>CONFIG_JSON overrides
// everything.
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
}

func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &EnvConfigLoader{logger: log, prefix: prefix}
}

func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	if jsonConfig := os.Getenv(e.prefix + "CONFIG_JSON"); jsonConfig != "" {
		if err := json.Unmarshal([]byte(jsonConfig), dst); err != nil {
			return fmt.Errorf("failed to unmarshal CONFIG_JSON: %w", err)
		}

		e.logger.Info().Msg("Loaded configuration from CONFIG_JSON environment variable")

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	e.loadStruct(v, e.prefix)

	return nil
}

func (e *EnvConfigLoader) loadStruct(v reflect.Value, prefix string) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}

		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}

		name := strings.Split(tag, ",")[0]
		envName := prefix + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		if err := e.setField(field, envName); err != nil {
			// one bad variable does not abort the rest
			e.logger.Warn().Str("env", envName).Err(err).Msg("Ignoring environment variable")
		}
	}
}

func (e *EnvConfigLoader) setField(field reflect.Value, envName string) error {
	envValue, set := os.LookupEnv(envName)

	if set && field.Addr().Type().Implements(jsonUnmarshalerType) {
		return unmarshalScalar(field, envValue)
	}

	switch {
	case field.Kind() == reflect.Struct:
		e.loadStruct(field, envName+"_")
		return nil
	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		if !set && !e.hasPrefixed(envName+"_") {
			return nil
		}

		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}

		if set {
			return unmarshalScalar(field.Elem(), envValue)
		}

		e.loadStruct(field.Elem(), envName+"_")

		return nil
	}

	if !set || envValue == "" {
		return nil
	}

	return setByKind(field, envName, envValue)
}

func (*EnvConfigLoader) hasPrefixed(prefix string) bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, prefix) {
			return true
		}
	}

	return false
}

// unmarshalScalar feeds a raw env value to a json.Unmarshaler, quoting it
// when it is not already JSON.
func unmarshalScalar(field reflect.Value, raw string) error {
	target := field.Addr().Interface()

	if err := json.Unmarshal([]byte(raw), target); err == nil {
		return nil
	}

	quoted, _ := json.Marshal(raw)

	return json.Unmarshal(quoted, target)
}

func setByKind(field reflect.Value, envName, envValue string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Bool:
		b, err := strconv.ParseBool(envValue)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", envName, err)
		}

		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(envValue)
			if err != nil {
				return fmt.Errorf("invalid duration value for %s: %w", envName, err)
			}

			field.SetInt(int64(d))

			return nil
		}

		i, err := strconv.ParseInt(envValue, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", envName, err)
		}

		field.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(envValue, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value for %s: %w", envName, err)
		}

		field.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(envValue, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %w", envName, err)
		}

		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(envValue, ",")
			slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))

			for i, p := range parts {
				slice.Index(i).SetString(strings.TrimSpace(p))
			}

			field.Set(slice)

			return nil
		}

		return unmarshalJSONField(field, envName, envValue)
	case reflect.Map:
		return unmarshalJSONField(field, envName, envValue)
	default:
		return fmt.Errorf("%w: %s for %s", errUnsupportedFieldKind, field.Kind(), envName)
	}

	return nil
}

func unmarshalJSONField(field reflect.Value, envName, envValue string) error {
	if err := json.Unmarshal([]byte(envValue), field.Addr().Interface()); err != nil {
		return fmt.Errorf("invalid JSON value for %s: %w", envName, err)
	}

	return nil
}
