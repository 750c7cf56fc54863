package config

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/wesleyorama2/kvlunge/internal/performance/executor"
	"github.com/wesleyorama2/kvlunge/internal/performance/generator"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
	"github.com/wesleyorama2/kvlunge/internal/performance/sequence"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Fields returns the failing field paths in order.
func (e *ValidationErrors) Fields() []string {
	out := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err.Field
	}
	return out
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their YAML names.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate validates the entire run configuration.
//
// Unset fields are checked with their defaults, so Validate may be called
// before or after ApplyDefaults. Returns nil if valid, or a
// ValidationErrors containing all validation errors.
func (c *RunConfig) Validate() error {
	cfg := *c
	cfg.Targets = slices.Clone(c.Targets)
	if c.Throttle != nil {
		t := *c.Throttle
		cfg.Throttle = &t
	}
	ApplyDefaults(&cfg)

	errs := &ValidationErrors{}

	if err := structValidator().Struct(&cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs.Add(stripPrefix(fe.Namespace()), describeTag(fe))
		}
	}

	validateBounds(&cfg, errs)
	validateTargets(&cfg, errs)
	validateWorkload(&cfg, errs)
	validateThrottle(&cfg, errs)
	validateThresholds(&cfg, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func stripPrefix(s string) string {
	if idx := strings.Index(s, "."); idx != -1 {
		return s[idx+1:]
	}
	return s
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// validateBounds checks the run strategy bounds.
func validateBounds(c *RunConfig, errs *ValidationErrors) {
	if c.Duration > 0 && (c.Iterations > 0 || c.SharedIterations > 0) {
		errs.Add("duration", "duration cannot be combined with iterations or sharedIterations")
	}
	if c.Iterations > 0 && c.SharedIterations > 0 {
		errs.Add("iterations", "iterations and sharedIterations are mutually exclusive")
	}

	if err := c.ExecutorConfig().Validate(); err != nil {
		var verr *executor.ValidationError
		if errors.As(err, &verr) {
			field := verr.Field
			if field == "iterations" && c.Executor == string(executor.TypeSharedIterations) {
				field = "sharedIterations"
			}
			if field == "type" {
				field = "executor"
			}
			errs.Add(field, verr.Message)
		} else {
			errs.Add("executor", err.Error())
		}
	}
}

func validateTargets(c *RunConfig, errs *ValidationErrors) {
	seen := make(map[string]int, len(c.Targets))
	for i, t := range c.Targets {
		if j, dup := seen[t.Name]; dup {
			errs.Add(fmt.Sprintf("targets[%d].name", i), fmt.Sprintf("duplicate target name %q (also targets[%d])", t.Name, j))
			continue
		}
		seen[t.Name] = i
	}
}

// validateWorkload checks the sequence, generators and operation mix by
// building them.
func validateWorkload(c *RunConfig, errs *ValidationErrors) {
	if _, err := sequence.New(c.SequenceSpec(), c.Seed); err != nil {
		errs.Add("sequence", err.Error())
	}
	if _, err := generator.New(c.KeySpec()); err != nil {
		errs.Add("keys", err.Error())
	}
	if _, err := generator.New(c.ValueSpec()); err != nil {
		errs.Add("values", err.Error())
	}

	switch {
	case len(c.Operations) == 0 && c.Operation == "":
		errs.Add("operations", "an operation or an operation mix is required")
	case len(c.Operations) > 0 && c.Operation != "":
		errs.Add("operation", "operation cannot be combined with operations")
	default:
		if _, _, err := c.Workload(); err != nil {
			field := "operations"
			if c.Operation != "" {
				field = "operation"
			}
			errs.Add(field, err.Error())
		}
	}
}

func validateThrottle(c *RunConfig, errs *ValidationErrors) {
	if c.Throttle == nil {
		return
	}
	if _, err := metrics.ParseResult(c.Throttle.Result); err != nil {
		errs.Add("throttle.result", err.Error())
	}
}

func validateThresholds(c *RunConfig, errs *ValidationErrors) {
	for _, name := range slices.Sorted(maps.Keys(c.Thresholds)) {
		exprs := c.Thresholds[name]
		if _, err := metrics.ParseResult(name); err != nil {
			errs.Add("thresholds."+name, err.Error())
			continue
		}
		for i, expr := range exprs {
			if _, err := ParseThreshold(expr); err != nil {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", name, i), err.Error())
			}
		}
	}
}
