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

package models

import (
	"errors"
	"reflect"
	"strings"
)

var errNotStruct = errors.New("input must be a struct or pointer to struct")

// Redact converts a config struct to a JSON-shaped map, dropping fields
// tagged `sensitive:"true"` so the result is safe to log.
func Redact(input interface{}) (map[string]interface{}, error) {
	if input == nil {
		return map[string]interface{}{}, nil
	}

	out, ok := redactValue(reflect.ValueOf(input)).(map[string]interface{})
	if !ok {
		return nil, errNotStruct
	}

	return out, nil
}

func redactValue(rv reflect.Value) interface{} {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		return redactStruct(rv)
	case reflect.Slice, reflect.Array:
		items := make([]interface{}, rv.Len())
		for i := range items {
			items[i] = redactValue(rv.Index(i))
		}

		return items
	case reflect.Map:
		m := make(map[string]interface{}, rv.Len())

		iter := rv.MapRange()
		for iter.Next() {
			if k, ok := iter.Key().Interface().(string); ok {
				m[k] = redactValue(iter.Value())
			}
		}

		return m
	default:
		if !rv.IsValid() || !rv.CanInterface() {
			return nil
		}

		return rv.Interface()
	}
}

func redactStruct(rv reflect.Value) map[string]interface{} {
	rt := rv.Type()
	m := make(map[string]interface{}, rt.NumField())

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() || field.Tag.Get("sensitive") == "true" {
			continue
		}

		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}

		if name == "" {
			name = field.Name
		}

		m[name] = redactValue(rv.Field(i))
	}

	return m
}
