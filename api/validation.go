// Package api exposes the package search engine over HTTP.
package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/package-search/config"
	"github.com/gcbaptista/package-search/model"
)

// maxPackageNameLength bounds names accepted over HTTP.
const maxPackageNameLength = 256

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of validation operations
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// ValidatePackageName validates a package name path parameter
func ValidatePackageName(name string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if name == "" {
		result.AddError("name", "Package name is required")
		return result
	}

	if strings.TrimSpace(name) != name {
		result.AddError("name", "Package name cannot have leading or trailing whitespace")
		return result
	}

	if len(name) > maxPackageNameLength {
		result.AddError("name", fmt.Sprintf("Package name cannot exceed %d bytes", maxPackageNameLength))
	}

	return result
}

// ValidatePackages validates a batch of package documents for addition
func ValidatePackages(docs []model.PackageDocument) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if len(docs) == 0 {
		result.AddError("packages", "No packages provided")
		return result
	}

	seen := make(map[string]int, len(docs))
	for i, doc := range docs {
		field := fmt.Sprintf("packages[%d].name", i)
		name := strings.TrimSpace(doc.Name)
		if name == "" {
			result.AddError(field, "Package must have a non-empty 'name'")
			continue
		}
		if len(name) > maxPackageNameLength {
			result.AddError(field, fmt.Sprintf("Package name cannot exceed %d bytes", maxPackageNameLength))
			continue
		}
		if first, dup := seen[name]; dup {
			result.AddError(field, fmt.Sprintf("Duplicate package '%s' (first at index %d)", name, first))
			continue
		}
		seen[name] = i
	}

	return result
}

// ValidateSettings validates search settings submitted over HTTP
func ValidateSettings(settings *config.SearchSettings) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if settings == nil {
		result.AddError("settings", "Search settings are required")
		return result
	}

	for _, problem := range settings.Validate() {
		result.AddError("settings", problem)
	}

	return result
}

// SendValidationError sends a standardized validation error response
func SendValidationError(c *gin.Context, result *ValidationResult) {
	SendStructuredValidationError(c, result)
}

// ValidateJSONBinding validates JSON binding and returns a standardized error
func ValidateJSONBinding(c *gin.Context, target interface{}) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if err := c.ShouldBindJSON(target); err != nil {
		result.AddError("request_body", "Invalid request body: "+err.Error())
	}

	return result
}
