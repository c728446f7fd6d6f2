package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"securedeal-client/internal/domain"
)

// Statuses accepted by /deal/acceptRequest.
const (
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

type CreateDealRequest struct {
	Title        string
	Price        string
	Currency     string
	Description  string
	SecureID     string
	Duration     int
	Deliverables []domain.Deliverable
	Images       []domain.MediaRef
	Files        []domain.MediaRef
	UserID       string
	From         string
	To           string
}

func (c *Client) CreateDeal(ctx context.Context, req CreateDealRequest) (*domain.Deal, error) {
	deliverables, err := json.Marshal(req.Deliverables)
	if err != nil {
		return nil, fmt.Errorf("encode deliverables: %w", err)
	}
	images, err := json.Marshal(req.Images)
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}
	files, err := json.Marshal(req.Files)
	if err != nil {
		return nil, fmt.Errorf("encode files: %w", err)
	}

	form := url.Values{}
	form.Set("title", req.Title)
	form.Set("price", req.Price)
	form.Set("currency", req.Currency)
	form.Set("description", req.Description)
	form.Set("secureId", req.SecureID)
	form.Set("duration", strconv.Itoa(req.Duration))
	form.Set("deliverables", string(deliverables))
	form.Set("images", string(images))
	form.Set("files", string(files))
	form.Set("userId", req.UserID)
	form.Set("from", req.From)
	form.Set("to", req.To)
	form.Set("createdAt", time.Now().UTC().Format(time.RFC3339))

	var deal domain.Deal
	if err := c.postData(ctx, "/deal/create", form, true, &deal); err != nil {
		return nil, err
	}
	return &deal, nil
}

// AcceptRequest answers a pending deal request. status is "accepted" or
// "declined"; the server owns the resulting progressStatus.
func (c *Client) AcceptRequest(ctx context.Context, secureID, dealID, status string) error {
	form := url.Values{}
	form.Set("secureId", secureID)
	form.Set("dealId", dealID)
	form.Set("status", status)
	return c.do(ctx, http.MethodPost, "/deal/acceptRequest", form, true, nil)
}

func (c *Client) DeleteDeal(ctx context.Context, secureID, dealID string) error {
	form := url.Values{}
	form.Set("secureId", secureID)
	form.Set("dealId", dealID)
	return c.do(ctx, http.MethodDelete, "/deal/delete", form, true, nil)
}

func (c *Client) CancelDeal(ctx context.Context, userID, dealID string) error {
	form := url.Values{}
	form.Set("userId", userID)
	form.Set("dealId", dealID)
	return c.do(ctx, http.MethodPost, "/deal/cancelDeal", form, true, nil)
}

// DealsPage is one page of /deal/user_deals.
type DealsPage struct {
	Deals      []domain.Deal `json:"deals"`
	TotalPages int           `json:"totalPages"`
	Limit      int           `json:"limit"`
}

func (c *Client) UserDeals(ctx context.Context, userID, secureID string, page, limit int) (*DealsPage, error) {
	form := url.Values{}
	form.Set("userId", userID)
	form.Set("secureId", secureID)
	form.Set("page", strconv.Itoa(page))
	form.Set("limit", strconv.Itoa(limit))

	var out DealsPage
	if err := c.postData(ctx, "/deal/user_deals", form, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserRequests lists pending deal requests addressed to the current user.
func (c *Client) UserRequests(ctx context.Context) ([]domain.Deal, error) {
	var out []domain.Deal
	if err := c.postData(ctx, "/deal/user_requests", nil, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}
