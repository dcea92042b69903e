package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("❌ Validation Errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("⚠️  Validation Warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

// ValidateConfigWithDetails reports errors together with settings that are
// legal but likely to cause trouble during a release.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	if err := validateConfig(config); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "config",
			Message: err.Error(),
		})
	}

	validateApplyConfigDetails(&config.Apply, result)
	validateRegistryConfigDetails(&config.Registry, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateApplyConfigDetails(config *ApplyConfig, result *ValidationResult) {
	if config.BatchSize > 0 && config.MaxConcurrent > config.BatchSize {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "apply.max_concurrent",
			Value:   config.MaxConcurrent,
			Message: fmt.Sprintf("max_concurrent %d exceeds batch_size %d; extra workers stay idle", config.MaxConcurrent, config.BatchSize),
			Suggestions: []string{
				"Lower max_concurrent to the batch size",
			},
		})
	}

	if config.ParallelBatches > 1 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "apply.parallel_batches",
			Value:   config.ParallelBatches,
			Message: "batches in one group start before earlier batches of the group finish",
			Suggestions: []string{
				"Keep parallel_batches at 1 unless the registry propagates new versions instantly",
			},
		})
	}

	if config.PollTimeout == 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "apply.poll_timeout",
			Value:   config.PollTimeout,
			Message: "availability polling is disabled",
			Suggestions: []string{
				"Dependents may fail to resolve a version the registry has not indexed yet",
			},
		})
	}

	if config.BatchDelay < time.Second && config.BatchSize > 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "apply.batch_delay",
			Value:   config.BatchDelay,
			Message: "no delay between batches",
			Suggestions: []string{
				"crates.io rate limits new crate uploads; use a delay of several seconds",
			},
		})
	}
}

func validateRegistryConfigDetails(config *RegistryConfig, result *ValidationResult) {
	if strings.HasPrefix(config.IndexURL, "http://") {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "registry.index_url",
			Value:   config.IndexURL,
			Message: "index is queried over plain HTTP",
		})
	}
}
