package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes returned by the service.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInvalidGrant       = "invalid_grant"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeWeakPassword       = "weak_password"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeRateLimited        = "rate_limited"
	ErrorCodeServerError        = "server_error"
)

// APIError is the service's uniform error envelope.
type APIError struct {
	// StatusCode is the HTTP status code of the response
	StatusCode int `json:"-"`

	// Code is the machine-readable error code (e.g. "invalid_credentials")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// StepUpRequiredError is returned by Login when the service demands step-up
// verification before issuing tokens. Complete the flow with
// Client.CompleteStepUp.
type StepUpRequiredError struct {
	// VerificationToken is the short-lived token that must accompany the
	// TOTP code on the step-up endpoint.
	VerificationToken string
}

// Error implements the error interface.
func (e *StepUpRequiredError) Error() string {
	return "step-up verification required"
}

// errorFromResponse decodes the error envelope from a non-2xx response.
func errorFromResponse(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = ErrorCodeServerError
		apiErr.Description = fmt.Sprintf("unexpected response (status %d)", resp.StatusCode)
	}
	return apiErr
}
