package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from DealStatus
		to   DealStatus
		ok   bool
	}{
		{"approve", StatusAwaitingApproval, StatusAwaitingPayment, true},
		{"decline", StatusAwaitingApproval, StatusDeclined, true},
		{"pay", StatusAwaitingPayment, StatusInProgress, true},
		{"cancel", StatusAwaitingPayment, StatusCanceled, true},
		{"complete", StatusInProgress, StatusCompleted, true},
		{"dispute", StatusInProgress, StatusDispute, true},
		{"skip payment", StatusAwaitingApproval, StatusInProgress, false},
		{"complete unpaid", StatusAwaitingPayment, StatusCompleted, false},
		{"revive declined", StatusDeclined, StatusAwaitingPayment, false},
		{"revive canceled", StatusCanceled, StatusInProgress, false},
		{"reopen completed", StatusCompleted, StatusInProgress, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to))
		})
	}
}

func TestDealStatusTerminal(t *testing.T) {
	for _, s := range []DealStatus{StatusDeclined, StatusCanceled, StatusCompleted, StatusDispute} {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
	for _, s := range []DealStatus{StatusAwaitingApproval, StatusAwaitingPayment, StatusInProgress} {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}

func TestDealTransitionRejectsIllegalMove(t *testing.T) {
	deal := Deal{ID: "d1", ProgressStatus: StatusAwaitingApproval}

	err := deal.Transition(StatusCompleted)
	require.Error(t, err)
	assert.Equal(t, StatusAwaitingApproval, deal.ProgressStatus)

	require.NoError(t, deal.Transition(StatusAwaitingPayment))
	assert.Equal(t, StatusAwaitingPayment, deal.ProgressStatus)
}

func TestRequestExpiryIsDisplayOnly(t *testing.T) {
	now := time.Now()
	deal := Deal{
		ID:                "d1",
		ProgressStatus:    StatusAwaitingApproval,
		RequestExpiryDate: now.Add(-time.Hour),
	}

	assert.True(t, deal.RequestExpired(now))
	assert.Equal(t, time.Duration(0), deal.TimeRemaining(now))
	// Expiry never mutates the status.
	assert.Equal(t, StatusAwaitingApproval, deal.ProgressStatus)

	deal.RequestExpiryDate = now.Add(30 * time.Minute)
	assert.False(t, deal.RequestExpired(now))
	assert.Equal(t, 30*time.Minute, deal.TimeRemaining(now))
}

func TestRequestExpiryZeroValueNeverExpires(t *testing.T) {
	deal := Deal{ID: "d1"}
	assert.False(t, deal.RequestExpired(time.Now()))
}
