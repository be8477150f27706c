package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/bidflow/auction-client/internal/model"
)

// ErrInvalidUUID is returned when a user UUID does not parse.
var ErrInvalidUUID = errors.New("invalid user uuid")

// ValidateUserUUID checks that s is a well-formed UUID.
func ValidateUserUUID(s string) error {
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidUUID, s)
	}
	return nil
}

// Login authenticates and stores the session cookie in the client's jar.
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	var user model.User
	if _, err := c.send(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}, &user); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &user, nil
}

// Signup registers a new account and returns the server message.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (string, error) {
	msg, err := c.send(ctx, http.MethodPost, "/auth/signup", req, nil)
	if err != nil {
		return "", fmt.Errorf("signup: %w", err)
	}
	return msg, nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.send(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// CheckAuth returns the user bound to the current session cookie.
func (c *Client) CheckAuth(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.get(ctx, "/auth/check", nil, &user); err != nil {
		return nil, fmt.Errorf("check auth: %w", err)
	}
	if user.UserUUID == "" {
		return nil, fmt.Errorf("check auth: %w", &APIError{StatusCode: http.StatusUnauthorized, Message: "no user in session"})
	}
	return &user, nil
}

// SendVerificationCode mails a signup verification code.
func (c *Client) SendVerificationCode(ctx context.Context, email string) (string, error) {
	msg, err := c.send(ctx, http.MethodPost, "/auth/send-code", SendCodeRequest{Email: email}, nil)
	if err != nil {
		return "", fmt.Errorf("send code: %w", err)
	}
	return msg, nil
}

// VerifyCode confirms a signup verification code.
func (c *Client) VerifyCode(ctx context.Context, email, code string) (string, error) {
	msg, err := c.send(ctx, http.MethodPost, "/auth/vertify", VerifyCodeRequest{Email: email, Code: code}, nil)
	if err != nil {
		return "", fmt.Errorf("verify code: %w", err)
	}
	return msg, nil
}

// GetUser fetches a user profile.
func (c *Client) GetUser(ctx context.Context, userUUID string) (*model.User, error) {
	if err := ValidateUserUUID(userUUID); err != nil {
		return nil, err
	}

	var user model.User
	if err := c.get(ctx, "/auth/users/"+userUUID, nil, &user); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateUser updates a user profile.
func (c *Client) UpdateUser(ctx context.Context, userUUID string, upd UserUpdate) error {
	if err := ValidateUserUUID(userUUID); err != nil {
		return err
	}
	if _, err := c.send(ctx, http.MethodPut, "/auth/users/"+userUUID, upd, nil); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
