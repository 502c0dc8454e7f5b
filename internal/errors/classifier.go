package errors

import (
	"net/http"
	"strings"
)

// ErrorClassifier determines error type and handling strategy
type ErrorClassifier struct {
	transientCodes  map[int]bool
	permanentCodes  map[int]bool
	timeoutPatterns []string
	networkPatterns []string
	rateLimitPatterns []string
}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{
		transientCodes: map[int]bool{
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
		permanentCodes: map[int]bool{
			http.StatusBadRequest:          true,
			http.StatusUnauthorized:        true,
			http.StatusForbidden:           true,
			http.StatusNotFound:            true,
			http.StatusMethodNotAllowed:    true,
			http.StatusConflict:            true,
			http.StatusUnprocessableEntity: true,
		},
		timeoutPatterns: []string{
			"timeout",
			"deadline exceeded",
			"context canceled",
			"connection reset",
		},
		networkPatterns: []string{
			"connection refused",
			"no such host",
			"network unreachable",
			"connection reset",
			"broken pipe",
			"connection closed",
		},
		rateLimitPatterns: []string{
			"rate limit",
			"too many requests",
			"quota exceeded",
			"throttled",
		},
	}
}

// Classify determines the error type and creates a CoreError
func (ec *ErrorClassifier) Classify(err error) *CoreError {
	if err == nil {
		return nil
	}
	
	// Check if already classified
	if sciErr, ok := err.(*CoreError); ok {
		return sciErr
	}
	
	errStr := strings.ToLower(err.Error())
	
	// Classify based on error content
	switch {
	case ec.isTimeoutError(errStr):
		return NewError(ErrorTypeTimeout, "OPERATION_TIMEOUT", "Unknown operation timed out").
			WithCause(err).
			WithStack().
			Build()
	case ec.isNetworkError(errStr):
		return NewNetworkError("Network connectivity issue", err)
	case ec.isRateLimitError(errStr):
		return NewError(ErrorTypeRateLimit, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded").
			WithCause(err).
			WithStack().
			Build()
	case ec.isDatabaseError(errStr):
		return NewDatabaseError("database operation", err)
	default:
		return NewError(ErrorTypeTransient, "UNKNOWN", "Unknown error occurred").
			WithCause(err).
			WithStatusCode(http.StatusInternalServerError).
			WithStack().
			Retryable(false).
			Build()
	}
}

// ClassifyHTTPError classifies HTTP response errors
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, body string) *CoreError {
	switch {
	case ec.transientCodes[statusCode]:
		return NewError(ErrorTypeTransient, "HTTP_ERROR", "HTTP request failed").
			WithDetail("status_code", statusCode).
			WithDetail("response_body", body).
			WithStatusCode(statusCode).
			Build()
	case ec.permanentCodes[statusCode]:
		return NewError(ErrorTypePermanent, "HTTP_ERROR", "HTTP request failed").
			WithDetail("status_code", statusCode).
			WithDetail("response_body", body).
			WithStatusCode(statusCode).
			Retryable(false).
			Build()
	case statusCode == http.StatusTooManyRequests:
		return NewError(ErrorTypeRateLimit, "HTTP_RATE_LIMIT", "HTTP rate limit exceeded").
			WithDetail("status_code", statusCode).
			WithDetail("response_body", body).
			Build()
	case statusCode == http.StatusRequestTimeout:
		return NewError(ErrorTypeTimeout, "HTTP_TIMEOUT", "HTTP request timed out").
			WithDetail("status_code", statusCode).
			WithDetail("response_body", body).
			Build()
	default:
		return NewError(ErrorTypeTransient, "HTTP_ERROR", "HTTP request failed").
			WithDetail("status_code", statusCode).
			WithDetail("response_body", body).
			WithStatusCode(statusCode).
			Build()
	}
}

// isTimeoutError checks if the error is a timeout error
func (ec *ErrorClassifier) isTimeoutError(errStr string) bool {
	for _, pattern := range ec.timeoutPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// isNetworkError checks if the error is a network error
func (ec *ErrorClassifier) isNetworkError(errStr string) bool {
	for _, pattern := range ec.networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// isRateLimitError checks if the error is a rate limit error
func (ec *ErrorClassifier) isRateLimitError(errStr string) bool {
	for _, pattern := range ec.rateLimitPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// isDatabaseError checks if the error is a database error
func (ec *ErrorClassifier) isDatabaseError(errStr string) bool {
	dbPatterns := []string{
		"database",
		"sql",
		"connection pool",
		"deadlock",
		"constraint",
		"foreign key",
		"duplicate key",
		"table doesn't exist",
		"column doesn't exist",
	}
	
	for _, pattern := range dbPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// isProviderError checks if the error is from a source adapter's upstream API
func (ec *ErrorClassifier) isProviderError(errStr string, provider string) bool {
	providerPatterns := map[string][]string{
		"arxiv": {
			"arxiv",
			"export.arxiv.org",
		},
		"crossref": {
			"crossref",
			"api.crossref.org",
		},
		"openalex": {
			"openalex",
			"api.openalex.org",
		},
		"scholar": {
			"serpapi",
			"google_scholar",
		},
	}

	if patterns, exists := providerPatterns[provider]; exists {
		for _, pattern := range patterns {
			if strings.Contains(errStr, pattern) {
				return true
			}
		}
	}

	return false
}

// ClassifyProviderError classifies source-adapter-specific errors
func (ec *ErrorClassifier) ClassifyProviderError(provider string, err error) *CoreError {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "429") || ec.isRateLimitError(errStr):
		return NewError(ErrorTypeRateLimit, "SOURCE_RATE_LIMIT", provider+" adapter rate limit exceeded").
			WithComponent(provider+"_adapter").
			WithCause(err).
			WithStack().
			Build()
	case ec.isTimeoutError(errStr):
		return NewError(ErrorTypeTimeout, "SOURCE_TIMEOUT", provider+" adapter request timed out").
			WithComponent(provider+"_adapter").
			WithCause(err).
			WithStack().
			Build()
	case ec.isNetworkError(errStr):
		return NewNetworkError("failed to reach "+provider+" API", err)
	case strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "401") || strings.Contains(errStr, "missing api key"):
		return NewAuthenticationError(provider + " adapter authentication failed")
	default:
		return NewProviderError(provider, provider+" adapter error", err)
	}
}

// Error Classification Helper Functions

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	
	if sciErr, ok := err.(*CoreError); ok {
		return sciErr.Type == ErrorTypeTimeout
	}
	
	classifier := NewErrorClassifier()
	classifiedErr := classifier.Classify(err)
	return classifiedErr.Type == ErrorTypeTimeout
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	
	if sciErr, ok := err.(*CoreError); ok {
		return sciErr.Type == ErrorTypeRateLimit
	}
	
	classifier := NewErrorClassifier()
	classifiedErr := classifier.Classify(err)
	return classifiedErr.Type == ErrorTypeRateLimit
}

// IsNetworkError checks if an error is a network error
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	
	if sciErr, ok := err.(*CoreError); ok {
		return sciErr.Type == ErrorTypeNetwork
	}
	
	classifier := NewErrorClassifier()
	classifiedErr := classifier.Classify(err)
	return classifiedErr.Type == ErrorTypeNetwork
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	
	if sciErr, ok := err.(*CoreError); ok {
		return sciErr.Type == ErrorTypeValidation
	}
	
	classifier := NewErrorClassifier()
	classifiedErr := classifier.Classify(err)
	return classifiedErr.Type == ErrorTypeValidation
}