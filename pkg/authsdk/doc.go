/*
Package authsdk provides a client SDK for the gatekeep authentication service.

# Client vs Session

The package is organized around two main types:

  - Client: unauthenticated operations and authentication flows
  - Session: authenticated operations with automatic token refresh

Create a Client to talk to public endpoints and log in:

	client := authsdk.NewClient("https://auth.example.com")

	// Check service health
	health, err := client.GetLiveness(ctx)

	// Authenticate to create a session
	session, err := client.Login(ctx, email, password)

When the service decides a login is risky it withholds tokens and demands
step-up verification. Login surfaces this as *StepUpRequiredError; complete
the flow with a TOTP code:

	session, err := client.Login(ctx, email, password)
	var stepUp *authsdk.StepUpRequiredError
	if errors.As(err, &stepUp) {
		session, err = client.CompleteStepUp(ctx, stepUp.VerificationToken, otpCode)
	}

Use a Session for everything that needs a bearer token. Sessions refresh
their access token transparently before it expires:

	// Revoke every session for the account
	err := session.LogoutAll(ctx)

	// List the account's active refresh sessions
	sessions, err := session.ListSessions(ctx)

Platform administrator sessions (created with PlatformLogin) additionally
reach the security surface:

	blocked, err := session.ListBlockedIPs(ctx)
	err = session.BlockIP(ctx, authsdk.BlockIPRequest{IP: "203.0.113.9", Reason: "abuse"})
	stats, err := session.GetSecurityStats(ctx, from, to, nil)

# Errors

Failed requests return *APIError carrying the HTTP status plus the service's
error code and description. Step-up demands are the one exception and return
*StepUpRequiredError so callers can branch on it with errors.As.
*/
package authsdk
