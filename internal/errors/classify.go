package errors

import "strings"

// credentialExpiryMarkers are matched case-insensitively against provider error text.
var credentialExpiryMarkers = []string{
	"api_key_invalid",
	"quota_exceeded",
	"permission_denied",
	"api key expired",
	"api key not valid",
	"quota",
	"billing",
	"exceeded",
}

// IsCredentialExpiry reports whether a provider error means the credential itself is unusable.
func IsCredentialExpiry(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range credentialExpiryMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ClassifyProvider maps provider error text to a Kind.
// Order matters: "deadline exceeded" is a timeout, not a quota problem.
func ClassifyProvider(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "quota", "resource_exhausted", "resource exhausted", "billing"):
		return KindQuota
	case containsAny(lower, "api_key_invalid", "api key not valid", "api key expired", "permission_denied", "permission denied"):
		return KindInvalidCredential
	case containsAny(lower, "timeout", "deadline exceeded", "timed out"):
		return KindTimeout
	case strings.Contains(lower, "exceeded"):
		return KindQuota
	case containsAny(lower, "size", "too large"):
		return KindTooLarge
	}
	return KindProviderError
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
