// Package config loads camwatch options and source descriptors.
//
// Options follow a fixed precedence: flags set on the command line win, then
// CAMWATCH_* environment variables, then values from the TOML config file, then
// struct-tag defaults applied by the CLI layer.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/smazurov/camwatch/internal/logging"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every `env` struct tag.
const EnvPrefix = "CAMWATCH_"

// LoadConfig fills opts (a pointer to a flat struct) from the TOML file named by
// its Config field and from the environment. Struct fields carry `toml:"a.b"`
// paths and `env:"NAME"` keys. Flags explicitly changed on cmd are left alone.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("options must be a pointer to a struct, got %T", opts)
	}
	v = v.Elem()
	t := v.Type()

	changed := changedFlags(cmd)

	var fileValues map[string]any
	if field := v.FieldByName("Config"); field.IsValid() && field.Kind() == reflect.String && field.String() != "" {
		data, err := os.ReadFile(field.String())
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &fileValues); err != nil {
				return fmt.Errorf("failed to parse TOML config %s: %w", field.String(), err)
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("failed to read config %s: %w", field.String(), err)
		}
	}

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if changed[fieldNameToFlag(fieldType.Name)] {
			continue
		}

		if path := fieldType.Tag.Get("toml"); path != "" && fileValues != nil {
			if value := getNestedValue(fileValues, path); value != nil {
				if err := setFieldValue(field, value); err != nil {
					return fmt.Errorf("config %s: %w", path, err)
				}
			}
		}

		if key := fieldType.Tag.Get("env"); key != "" {
			if raw, ok := os.LookupEnv(EnvPrefix + key); ok && raw != "" {
				if err := setFieldValueFromString(field, raw); err != nil {
					return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
				}
			}
		}
	}

	return nil
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	return changed
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Example: "BrokerPort" -> "broker-port", "Port" -> "port".
func fieldNameToFlag(fieldName string) string {
	var result []rune
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '-')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// getNestedValue retrieves a value from a nested map using dot notation.
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data
	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

// setFieldValue assigns a decoded TOML value to a struct field.
func setFieldValue(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case reflect.Float64:
		switch n := value.(type) {
		case float64:
			field.SetFloat(n)
		case int64:
			field.SetFloat(float64(n))
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
		slice := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				slice = append(slice, s)
			}
		}
		field.Set(reflect.ValueOf(slice))
	}
	return nil
}

// setFieldValueFromString assigns an environment value to a struct field.
func setFieldValueFromString(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(value, ",")
		slice := make([]string, len(parts))
		for i, part := range parts {
			slice[i] = strings.TrimSpace(part)
		}
		field.Set(reflect.ValueOf(slice))
	}
	return nil
}

// LoadLoggingConfig reads the [logging] table of a TOML config file. Keys other
// than level and format are per-module levels. Missing or unreadable files yield
// the defaults.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
	if configPath == "" {
		return cfg
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var raw struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg
	}

	for key, value := range raw.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
