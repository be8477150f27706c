package api

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

// SendCodeRequest is the body of POST /auth/send-code.
type SendCodeRequest struct {
	Email string `json:"email"`
}

// VerifyCodeRequest is the body of POST /auth/vertify.
type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// UserUpdate is the body of PUT /auth/users/{uuid}. An empty Password
// leaves the password unchanged.
type UserUpdate struct {
	Nickname     string `json:"nickname"`
	Email        string `json:"email"`
	Password     string `json:"password,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// ListAuctionsOptions filters GET /auctions.
type ListAuctionsOptions struct {
	CategoryID int64
}
