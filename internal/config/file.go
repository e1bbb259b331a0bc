package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"
	"gopkg.in/yaml.v3"

	schemasassets "github.com/3leaps/gridjobs/internal/assets/schemas"
)

// ErrValidationFailed indicates the config file failed schema validation.
var ErrValidationFailed = errors.New("config validation failed")

var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// ValidationError is a single schema violation.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects every schema violation of a config file.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "config validation failed with %d errors:", len(e))
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// LoadFile reads a YAML or JSON config file and validates it against the
// embedded config schema. The returned map is suitable for viper.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading config: %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseFile(data, path)
}

// ParseFile parses and validates config file contents. path is only used in
// error messages.
func ParseFile(data []byte, path string) (map[string]any, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}

	// YAML is a superset of JSON, so one decoder covers both formats.
	var settings map[string]any
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if settings == nil {
		return map[string]any{}, nil
	}

	jsonData, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to convert config %s to JSON: %w", path, err)
	}
	if err := validateRaw(jsonData); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

func validateRaw(jsonData []byte) error {
	v, err := getValidator()
	if err != nil {
		return err
	}

	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	var errs ValidationErrors
	for _, d := range diags {
		if d.Severity == schema.SeverityError {
			errs = append(errs, ValidationError{Path: d.Pointer, Message: d.Message})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func getValidator() (*schema.Validator, error) {
	validatorOnce.Do(func() {
		if len(schemasassets.ConfigSchema) == 0 {
			validatorErr = errors.New("embedded config schema is empty")
			return
		}
		validator, validatorErr = schema.NewValidator(schemasassets.ConfigSchema)
		if validatorErr != nil {
			validatorErr = fmt.Errorf("failed to compile config schema: %w", validatorErr)
		}
	})
	return validator, validatorErr
}
