package domain

import (
	"fmt"
	"time"
)

// DealStatus is the deal lifecycle state. Transitions happen only through
// explicit user actions confirmed by the remote API; expiry of the request
// window is computed for display and never mutates the status.
type DealStatus string

const (
	StatusAwaitingApproval DealStatus = "awaiting approval"
	StatusAwaitingPayment  DealStatus = "awaiting payment"
	StatusInProgress       DealStatus = "in progress"
	StatusCompleted        DealStatus = "completed"
	StatusDeclined         DealStatus = "declined"
	StatusCanceled         DealStatus = "canceled"
	StatusDispute          DealStatus = "dispute"
)

var dealTransitions = map[DealStatus][]DealStatus{
	StatusAwaitingApproval: {StatusDeclined, StatusAwaitingPayment},
	StatusAwaitingPayment:  {StatusInProgress, StatusCanceled},
	StatusInProgress:       {StatusCompleted, StatusDispute},
}

// CanTransition reports whether a deal may move from one status to another.
func CanTransition(from, to DealStatus) bool {
	for _, next := range dealTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist from the status.
func (s DealStatus) Terminal() bool {
	return len(dealTransitions[s]) == 0
}

type Deliverable struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// MediaRef points at a document or image on the media host.
type MediaRef struct {
	PublicID string `json:"public_id"`
	URL      string `json:"secure_url"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"type,omitempty"`
}

// Deal is an escrow agreement between a creator and a counterparty looked up
// by secureId.
type Deal struct {
	ID                string        `json:"_id"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Price             float64       `json:"price"`
	Currency          string        `json:"currency"`
	UserID            string        `json:"userId"`
	SecureID          string        `json:"secureId"`
	Duration          int           `json:"duration"`
	Deliverables      []Deliverable `json:"deliverables"`
	Files             []MediaRef    `json:"files"`
	Images            []MediaRef    `json:"images"`
	ProgressStatus    DealStatus    `json:"progressStatus"`
	RequestExpiryDate time.Time     `json:"requestExpiryDate"`
	CreatedAt         time.Time     `json:"createdAt"`
	From              string        `json:"from"`
	To                string        `json:"to"`
}

// RequestExpired reports whether the approval window has passed. Display
// only; the status itself is owned by the server.
func (d *Deal) RequestExpired(now time.Time) bool {
	return !d.RequestExpiryDate.IsZero() && now.After(d.RequestExpiryDate)
}

// TimeRemaining is the time left in the approval window, floored at zero.
func (d *Deal) TimeRemaining(now time.Time) time.Duration {
	remaining := d.RequestExpiryDate.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Transition validates and applies a status change on the local copy. It is
// called only after the remote update reported success.
func (d *Deal) Transition(to DealStatus) error {
	if !CanTransition(d.ProgressStatus, to) {
		return fmt.Errorf("deal %s: cannot move from %q to %q", d.ID, d.ProgressStatus, to)
	}
	d.ProgressStatus = to
	return nil
}
