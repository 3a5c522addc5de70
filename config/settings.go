// Package config provides configuration structures for the package search service.
// It defines search settings (page sizes, SDK library registry, rebuild cadence) and
// the process configuration loaded from YAML.
package config

import (
	"strings"
	"time"
)

const (
	DefaultPageSize        = 10
	DefaultMaxPageSize     = 100
	DefaultRebuildInterval = 10 * time.Minute
)

// DefaultSdkLibraries is the registry of core SDK library names matched alongside packages.
var DefaultSdkLibraries = []string{
	"dart:async",
	"dart:collection",
	"dart:convert",
	"dart:core",
	"dart:developer",
	"dart:ffi",
	"dart:html",
	"dart:io",
	"dart:isolate",
	"dart:js_interop",
	"dart:math",
	"dart:mirrors",
	"dart:typed_data",
	"dart:ui",
}

// SearchSettings contains the options that shape query parsing, ranking and index rebuilds.
type SearchSettings struct {
	DefaultLimit    int           `json:"default_limit" yaml:"defaultLimit"`       // Page size used when a query asks for limit <= 0
	MaxLimit        int           `json:"max_limit" yaml:"maxLimit"`               // Upper bound applied to requested limits
	SdkLibraries    []string      `json:"sdk_libraries" yaml:"sdkLibraries"`       // Fixed registry for SDK library hits
	RebuildInterval time.Duration `json:"rebuild_interval" yaml:"rebuildInterval"` // Period of the background refresh; 0 disables it
}

// Validate returns a list of problems with the settings; an empty list means valid.
func (settings *SearchSettings) Validate() []string {
	var problems []string

	if settings.DefaultLimit < 0 {
		problems = append(problems, "default_limit cannot be negative")
	}
	if settings.MaxLimit < 0 {
		problems = append(problems, "max_limit cannot be negative")
	}
	if settings.MaxLimit > 0 && settings.DefaultLimit > settings.MaxLimit {
		problems = append(problems, "default_limit cannot exceed max_limit")
	}
	if settings.RebuildInterval < 0 {
		problems = append(problems, "rebuild_interval cannot be negative")
	}

	problems = append(problems, checkDuplicates("sdk_libraries", settings.SdkLibraries)...)
	for _, lib := range settings.SdkLibraries {
		if strings.TrimSpace(lib) == "" {
			problems = append(problems, "SDK library name cannot be empty or whitespace-only")
		}
	}

	return problems
}

// checkDuplicates checks for duplicate values in a slice and returns error messages
func checkDuplicates(fieldName string, values []string) []string {
	var errors []string
	seen := make(map[string]bool)

	for _, value := range values {
		if seen[value] {
			errors = append(errors, "Duplicate value '"+value+"' found in "+fieldName)
		}
		seen[value] = true
	}

	return errors
}

// ApplyDefaults applies default values to the search settings
func (settings *SearchSettings) ApplyDefaults() {
	if settings.DefaultLimit <= 0 {
		settings.DefaultLimit = DefaultPageSize
	}
	if settings.MaxLimit <= 0 {
		settings.MaxLimit = DefaultMaxPageSize
	}

	// Ensure MaxLimit is at least as large as DefaultLimit
	if settings.MaxLimit < settings.DefaultLimit {
		settings.MaxLimit = settings.DefaultLimit
	}

	if settings.SdkLibraries == nil {
		settings.SdkLibraries = append([]string(nil), DefaultSdkLibraries...)
	}
}

// DefaultSearchSettings returns settings with every default applied.
func DefaultSearchSettings() SearchSettings {
	settings := SearchSettings{RebuildInterval: DefaultRebuildInterval}
	settings.ApplyDefaults()
	return settings
}
