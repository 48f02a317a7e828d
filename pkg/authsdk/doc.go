/*
Package authsdk owns session truth for the exam platform's admin console: login,
optional two-factor verification, token refresh, logout and role-based
permission checks.

# Components

The package is organized around one SessionStore that every other component
receives explicitly:

  - SessionStore: in-memory session plus a Persister for the access token,
    refresh token and user profile keys
  - Authenticator: credential login and best-effort logout
  - TwoFactorVerifier: completes a pending two-factor challenge
  - TokenRefresher: exchanges the refresh token, clearing the session on failure
  - PermissionEvaluator: fail-closed CRUD decisions from the user's role
  - Transport: http.RoundTripper attaching the current bearer token, with one
    refresh-and-retry on 401

Manager wires them together:

	client := authsdk.NewSDKClient("https://api.example.com")
	session := authsdk.NewSessionStore(persister)
	if err := session.Initialize(ctx); err != nil {
		return err
	}
	auth := authsdk.NewManager(client, session)

# Authentication Flows

A login either authenticates directly or leaves a two-factor challenge
pending:

	outcome, err := auth.Login(ctx, "a@x.com", secret)
	if err != nil {
		return err
	}
	if outcome.RequiresTwoFactor() {
		fmt.Println("code sent to", outcome.DestinationMasked)
		if _, err := auth.VerifyOTP(ctx, code); err != nil {
			return err
		}
	}

The challenge lives in memory only. A failed code keeps it so the user can
retry; a new login replaces it.

# Session State

The session is always in one of three states:

  - StateAnonymous: no token, no challenge
  - StateTwoFactorPending: a challenge is pending, no token
  - StateAuthenticated: an access token is held, the profile may be nil

A session restored by Initialize is authenticated with a nil profile. Until
Manager.LoadProfile succeeds every permission check is denied.

# Refresh

Refresh is all-or-nothing. If the refresh token is missing, rejected, or the
response is malformed, the session is cleared before the error is returned.
The Transport triggers refresh lazily on 401 and retries the request once.

# Error Handling

Every operation returns *AuthError. Compare with errors.Is against the
sentinels:

	_, err := auth.Login(ctx, id, secret)
	switch {
	case errors.Is(err, authsdk.ErrNetwork):
		// offer a retry
	case errors.Is(err, authsdk.ErrCredentials):
		// ask the user to correct their input
	}

ErrNoActiveChallenge and ErrInvalidInput are detected without a network
call. ErrSessionExpired always means the session has already been cleared.

# Thread Safety

SessionStore guards its state with a RWMutex and TokenRefresher serialises
refreshes, so the gateway may be used from many goroutines. Individual
mutations are atomic; a login racing a failing refresh is still
last-write-wins.
*/
package authsdk
