package middleware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
)

// Input validation and sanitization utilities

var (
	tenantPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	jobIDPattern  = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)
	docIDPattern  = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

// ValidateFormat checks the declared document format
func ValidateFormat(format string) error {
	if _, ok := documents.ParseFormat(format); !ok {
		return fmt.Errorf("invalid format: %s (allowed: text, spreadsheet, wordprocessor, image, pdf)", format)
	}
	return nil
}

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateJobID validates job ID format (uuid v4)
func ValidateJobID(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("job ID cannot be empty")
	}
	if !jobIDPattern.MatchString(jobID) {
		return fmt.Errorf("invalid job ID format")
	}
	return nil
}

// ValidateDocumentID validates document ID format (sha256 hex)
func ValidateDocumentID(docID string) error {
	if docID == "" {
		return fmt.Errorf("document ID cannot be empty")
	}
	if !docIDPattern.MatchString(docID) {
		return fmt.Errorf("invalid document ID format (expect 64 hex chars)")
	}
	return nil
}

// ValidateDocumentName checks user-supplied filenames on upload
func ValidateDocumentName(name string) error {
	if name == "" {
		return nil // optional, fallback generated server-side
	}
	cleaned := filepath.Clean(name)
	if strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, "/") {
		return fmt.Errorf("path traversal detected in document name")
	}
	for _, r := range name {
		if r < 32 && r != '\t' {
			return fmt.Errorf("invalid characters in document name")
		}
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidateDays validates days parameter
func ValidateDays(days int) int {
	if days <= 0 {
		return 7 // default
	}
	if days > 365 {
		return 365 // max 1 year
	}
	return days
}
