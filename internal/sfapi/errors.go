package sfapi

import "fmt"

// APIError is a non-200 response from the Salesforce API after any automatic
// re-authentication already ran.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request %s failed: HTTP %d", e.Path, e.StatusCode)
}
