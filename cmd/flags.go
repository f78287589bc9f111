package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Output formats shared by the listing commands.
const (
	formatTable = "table"
	formatText  = "text"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateChoice rejects values outside allowed, suggesting the closest
// allowed value by prefix.
func ValidateChoice(allowed ...string) func(string) error {
	return func(value string) error {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		for _, a := range allowed {
			if value != "" && strings.HasPrefix(a, strings.ToLower(value)) {
				return fmt.Errorf("invalid value %q, did you mean %q? (valid: %s)", value, a, strings.Join(allowed, ", "))
			}
		}
		return fmt.Errorf("invalid value %q (valid: %s)", value, strings.Join(allowed, ", "))
	}
}

// ParseModel decodes a JSON model given inline or as @file.json. An empty
// string is no model.
func ParseModel(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}

	data := []byte(raw)
	if strings.HasPrefix(raw, "@") {
		var err error
		if data, err = os.ReadFile(strings.TrimPrefix(raw, "@")); err != nil {
			return nil, fmt.Errorf("reading model file: %w", err)
		}
	}

	var model any
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("invalid JSON model: %w", err)
	}
	return model, nil
}
