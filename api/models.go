package api

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LoginRequest is the JSON body for POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned from POST /login when the password phase
// passes. The QR artifacts are present only when enrollment is required.
type LoginResponse struct {
	Requires2FA       bool   `json:"requires2FA"`
	TwoFactorEnabled  bool   `json:"twoFactorEnabled"`
	TwoFactorVerified bool   `json:"twoFactorVerified"`
	UserID            int64  `json:"userId"`
	QRCode            string `json:"qrCode,omitempty"`
	Secret            string `json:"secret,omitempty"`
	OtpauthURL        string `json:"otpauthUrl,omitempty"`
}

// LockedResponse is returned with status 403 while an account lockout is
// in effect. Only a coarse remaining-time estimate is revealed.
type LockedResponse struct {
	Error            string `json:"error"`
	MinutesRemaining int    `json:"minutesRemaining"`
}

// SignupRequest is the JSON body for POST /signup.
type SignupRequest struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	BusinessName string `json:"businessName,omitempty"`
	BusinessType string `json:"businessType,omitempty"`
	AccountType  string `json:"accountType"`
}

// SignupResponse is returned from POST /signup.
type SignupResponse struct {
	Success                   bool   `json:"success"`
	UserID                    int64  `json:"userId"`
	QRCode                    string `json:"qrCode"`
	Secret                    string `json:"secret"`
	OtpauthURL                string `json:"otpauthUrl"`
	RequiresEmailVerification bool   `json:"requiresEmailVerification"`
}

// SetupTwoFactorRequest is the JSON body for POST /2fa/setup.
type SetupTwoFactorRequest struct {
	Email string `json:"email"`
}

// SetupTwoFactorResponse is returned from POST /2fa/setup.
type SetupTwoFactorResponse struct {
	Success    bool   `json:"success"`
	QRCode     string `json:"qrCode"`
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauthUrl"`
}

// VerifyTwoFactorRequest is the JSON body for POST /2fa/verify. The user
// may be identified by email or id, and clients have historically sent the
// code under either name.
type VerifyTwoFactorRequest struct {
	Email  string `json:"email,omitempty"`
	UserID int64  `json:"userId,omitempty"`
	Code   string `json:"code,omitempty"`
	Token  string `json:"token,omitempty"`
}

// UserInfo is the client-visible view of a credential record.
type UserInfo struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	FullName          string `json:"fullName"`
	BusinessName      string `json:"businessName,omitempty"`
	BusinessType      string `json:"businessType,omitempty"`
	AccountType       string `json:"accountType"`
	TwoFactorEnabled  bool   `json:"twoFactorEnabled"`
	TwoFactorVerified bool   `json:"twoFactorVerified"`
}

// VerifyTwoFactorResponse is returned from POST /2fa/verify.
type VerifyTwoFactorResponse struct {
	Success bool     `json:"success"`
	User    UserInfo `json:"user"`
}

// LogoutResponse is returned from POST /logout.
type LogoutResponse struct {
	Success bool `json:"success"`
}

// MeResponse is returned from GET /me.
type MeResponse struct {
	LoggedIn bool      `json:"loggedIn"`
	User     *UserInfo `json:"user,omitempty"`
}

// CSRFResponse is returned from GET /csrf.
type CSRFResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// ResetRequestRequest is the JSON body for POST /password/reset-request.
type ResetRequestRequest struct {
	Email string `json:"email"`
}

// MessageResponse is a generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ResetConfirmRequest is the JSON body for POST /password/reset.
type ResetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetConfirmResponse is returned from POST /password/reset.
type ResetConfirmResponse struct {
	Message       string `json:"message"`
	RequiresLogin bool   `json:"requiresLogin"`
}
