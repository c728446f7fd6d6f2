package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"securedeal-client/internal/domain"
)

// OTP actions accepted by /user/sendOtp.
const (
	OTPActionLogin  = "login"
	OTPActionSignup = "signup"
)

// SendOTP triggers an email verification code. Password is only sent for
// login-flavored requests.
func (c *Client) SendOTP(ctx context.Context, email, password, action string) error {
	form := url.Values{}
	form.Set("email", email)
	form.Set("action", action)
	if password != "" {
		form.Set("password", password)
	}
	return c.do(ctx, http.MethodPost, "/user/sendOtp", form, false, nil)
}

type SignupRequest struct {
	FirstName        string
	LastName         string
	Email            string
	Password         string
	Location         string
	VerificationCode string
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*domain.User, error) {
	form := url.Values{}
	form.Set("firstName", req.FirstName)
	form.Set("lastName", req.LastName)
	form.Set("email", req.Email)
	form.Set("password", req.Password)
	form.Set("location", req.Location)
	form.Set("verificationCode", req.VerificationCode)

	var user domain.User
	if err := c.postData(ctx, "/user/signup", form, false, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

type loginResponse struct {
	JWT  string      `json:"jwt"`
	User domain.User `json:"user"`
}

// Login exchanges credentials plus the emailed code for a bearer token.
func (c *Client) Login(ctx context.Context, email, password, code string) (string, *domain.User, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)
	form.Set("verificationCode", code)

	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/user/login", form, false, &resp); err != nil {
		return "", nil, err
	}
	if resp.JWT == "" {
		return "", nil, fmt.Errorf("/user/login: missing jwt in response")
	}
	return resp.JWT, &resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/user/logout", nil, true, nil)
}

func (c *Client) GetCurrentUser(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.postData(ctx, "/user/getCurrentUser", nil, true, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetSellerDetails resolves a counterparty profile by its public handle.
func (c *Client) GetSellerDetails(ctx context.Context, secureID string) (*domain.User, error) {
	form := url.Values{}
	form.Set("secureId", secureID)

	var seller domain.User
	if err := c.postData(ctx, "/user/getSellerDetails", form, true, &seller); err != nil {
		return nil, err
	}
	return &seller, nil
}

// UpdateUser pushes profile changes. Structured fields travel as JSON
// strings inside the form body, matching the call-site convention.
func (c *Client) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	contacts, err := json.Marshal(user.Contacts)
	if err != nil {
		return nil, fmt.Errorf("encode contacts: %w", err)
	}
	wallets, err := json.Marshal(user.Wallets)
	if err != nil {
		return nil, fmt.Errorf("encode wallets: %w", err)
	}

	form := url.Values{}
	form.Set("firstName", user.FirstName)
	form.Set("lastName", user.LastName)
	form.Set("location", user.Location)
	form.Set("businessName", user.BusinessName)
	form.Set("businessDescription", user.BusinessDescription)
	form.Set("contacts", string(contacts))
	form.Set("wallets", string(wallets))

	var updated domain.User
	if err := c.postData(ctx, "/user/updateuser", form, true, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
