package authsdk

import (
	"time"
)

// ============================================================================
// Domain types
// ============================================================================

// PermissionGrant is a per-section CRUD capability record on a role.
type PermissionGrant struct {
	SectionName string `json:"sectionName"`
	CanCreate   bool   `json:"isCreate"`
	CanRead     bool   `json:"isRead"`
	CanUpdate   bool   `json:"isUpdate"`
	CanDelete   bool   `json:"isDelete"`
}

// Role names a set of permission grants.
type Role struct {
	Name        string            `json:"name"`
	Permissions []PermissionGrant `json:"permissions"`
}

// UserProfile is the authenticated operator.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// TwoFactorChallenge is the pending state between a login that requires a
// second factor and the one-time code that completes it. It only ever lives
// in memory.
type TwoFactorChallenge struct {
	Identifier        string
	DestinationMasked string
	Message           string
	IssuedAt          time.Time
}

// Tokens is the credential pair handed to the session store. ExpiresIn is in
// seconds; zero means unknown.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// OutcomeStatus describes where a successful auth call left the session.
type OutcomeStatus string

const (
	OutcomeAuthenticated     OutcomeStatus = "authenticated"
	OutcomeRequiresTwoFactor OutcomeStatus = "requires_two_factor"
)

// LoginOutcome is returned by Login and Refresh.
type LoginOutcome struct {
	Status OutcomeStatus

	// DestinationMasked and Message are set for OutcomeRequiresTwoFactor.
	DestinationMasked string
	Message           string

	// User is set only when the server supplied a profile.
	User *UserProfile
}

// RequiresTwoFactor reports whether a one-time code is needed to finish.
func (o *LoginOutcome) RequiresTwoFactor() bool {
	return o != nil && o.Status == OutcomeRequiresTwoFactor
}

// VerifyOutcome is returned by VerifyOTP.
type VerifyOutcome struct {
	Status OutcomeStatus
	User   *UserProfile
}

// ============================================================================
// Request/response types
// ============================================================================

// LoginRequest is the body of the login call.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Secret     string `json:"secret" validate:"required"`
}

// LoginResponse is the body returned by the login call. The platform has
// shipped both "accessToken" and "token", and both "destinationMasked" and
// "mobileNumber", so both spellings are accepted.
type LoginResponse struct {
	AccessToken       string       `json:"accessToken,omitempty"`
	Token             string       `json:"token,omitempty"`
	RefreshToken      string       `json:"refreshToken,omitempty"`
	ExpiresIn         int          `json:"expiresIn,omitempty"`
	User              *UserProfile `json:"user,omitempty"`
	RequiresTwoFactor bool         `json:"requiresTwoFactor,omitempty"`
	DestinationMasked string       `json:"destinationMasked,omitempty"`
	MobileNumber      string       `json:"mobileNumber,omitempty"`
	Message           string       `json:"message,omitempty"`
}

func (r *LoginResponse) accessToken() string {
	return firstNonEmpty(r.AccessToken, r.Token)
}

func (r *LoginResponse) destination() string {
	return firstNonEmpty(r.DestinationMasked, r.MobileNumber)
}

// VerifyOTPRequest is the body of the OTP verification call.
type VerifyOTPRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Code       string `json:"code" validate:"required"`
}

// VerifyOTPResponse is the body returned by the OTP verification call.
type VerifyOTPResponse struct {
	Success      bool         `json:"success"`
	AccessToken  string       `json:"accessToken,omitempty"`
	Token        string       `json:"token,omitempty"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	ExpiresIn    int          `json:"expiresIn,omitempty"`
	User         *UserProfile `json:"user,omitempty"`
	Message      string       `json:"message,omitempty"`
}

func (r *VerifyOTPResponse) accessToken() string {
	return firstNonEmpty(r.AccessToken, r.Token)
}

// RefreshRequest is the body of the refresh and logout calls.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is the body returned by the refresh call.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken,omitempty"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn,omitempty"`
}

func (r *RefreshResponse) accessToken() string {
	return firstNonEmpty(r.AccessToken, r.Token)
}

// ErrorResponse is the error body the platform returns. Either field may be
// used depending on the endpoint.
type ErrorResponse struct {
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (r *ErrorResponse) text() string {
	return firstNonEmpty(r.Message, r.ErrorDescription, r.Error)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
