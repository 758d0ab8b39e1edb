// Package config reads stapler job files.
//
//	inputs: ["a.pdf", "chapters/*.pdf"]
//	output: merged.pdf
//	compress: true
//	strict: true
//	parallelism: 4
//	log-level: info
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrConfigurationError   = errors.New("configuration error")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidValue         = errors.New("invalid value")
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err == nil {
		return ErrConfigurationError
	}
	return e.Err
}

func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// Job describes one merge.
type Job struct {
	// Inputs are paths or glob patterns, merged in the listed order.
	Inputs      []string `yaml:"inputs"`
	Output      string   `yaml:"output"`
	Compress    bool     `yaml:"compress"`
	Strict      *bool    `yaml:"strict"`
	Parallelism int      `yaml:"parallelism"`
	LogLevel    string   `yaml:"log-level"`
}

// IsStrict reports the strict setting, which defaults to true.
func (j *Job) IsStrict() bool {
	return j.Strict == nil || *j.Strict
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the job for missing or out-of-range values. Glob
// expansion is left to the caller, so at this point only the presence of
// inputs is checked.
func (j *Job) Validate() error {
	if j.Output == "" {
		return &ConfigError{Field: "output", Message: "required field is missing", Err: ErrMissingRequiredField}
	}
	if len(j.Inputs) == 0 {
		return &ConfigError{Field: "inputs", Message: "required field is missing", Err: ErrMissingRequiredField}
	}
	for i, in := range j.Inputs {
		if strings.TrimSpace(in) == "" {
			return &ConfigError{Field: "inputs", Message: fmt.Sprintf("entry %d is empty", i), Err: ErrInvalidValue}
		}
	}
	if j.Parallelism < 0 {
		return &ConfigError{Field: "parallelism", Message: "must not be negative", Err: ErrInvalidValue}
	}
	if j.LogLevel != "" && !validLevel(j.LogLevel) {
		return &ConfigError{
			Field:   "log-level",
			Message: fmt.Sprintf("unknown level %q, expected one of %s", j.LogLevel, strings.Join(logLevels, ", ")),
			Err:     ErrInvalidValue,
		}
	}
	return nil
}

func validLevel(level string) bool {
	for _, l := range logLevels {
		if strings.EqualFold(level, l) {
			return true
		}
	}
	return false
}

// Parse decodes a job from YAML. Unknown keys are rejected. The job is not
// validated, so that callers can fill in missing values first.
func Parse(r io.Reader) (*Job, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var job Job
	if err := dec.Decode(&job); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewConfigError("", "empty job file")
		}
		return nil, &ConfigError{Message: err.Error(), Err: fmt.Errorf("%w: %w", ErrConfigurationError, err)}
	}
	return &job, nil
}

// Load reads and parses the job file at path. See Parse.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}
