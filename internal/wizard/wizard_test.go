package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"securedeal-client/internal/apiclient"
	"securedeal-client/internal/cache"
	"securedeal-client/internal/domain"
	"securedeal-client/internal/upload"
)

type fakeAPI struct {
	seller      *domain.User
	sellerErr   error
	created     *domain.Deal
	createErr   error
	lookupCalls int
	createCalls int
}

func (f *fakeAPI) GetSellerDetails(_ context.Context, _ string) (*domain.User, error) {
	f.lookupCalls++
	return f.seller, f.sellerErr
}

func (f *fakeAPI) CreateDeal(_ context.Context, _ apiclient.CreateDealRequest) (*domain.Deal, error) {
	f.createCalls++
	return f.created, f.createErr
}

type fakeMedia struct {
	uploadErr error
	deleteErr error
	deleted   []string
}

func (f *fakeMedia) Upload(_ context.Context, name, mimeType string, _ []byte, _ upload.ProgressFunc) (*domain.MediaRef, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &domain.MediaRef{PublicID: "pub_" + name, URL: "https://media/" + name, Name: name, MimeType: mimeType}, nil
}

func (f *fakeMedia) Delete(_ context.Context, publicID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, publicID)
	return nil
}

func validDraft() Draft {
	return Draft{
		Title:       "Website Design Project",
		Price:       "500.00",
		Currency:    "USDC",
		Description: "Complete redesign of the company website",
		SecureID:    "SD-SELLER",
		Duration:    14,
		Deliverables: []domain.Deliverable{
			{Description: "Design mockups"},
		},
	}
}

func newWizard(t *testing.T) (*Wizard, *fakeAPI, *fakeMedia, cache.Store) {
	t.Helper()
	kv := cache.NewMemory()
	api := &fakeAPI{
		seller:  &domain.User{ID: "u2", SecureID: "SD-SELLER", BusinessName: "Acme Studio"},
		created: &domain.Deal{ID: "d-new", Title: "Website Design Project", To: "Acme Studio"},
	}
	media := &fakeMedia{}
	w := New(kv, api, media, zap.NewNop())
	return w, api, media, kv
}

func TestValidateStepOne(t *testing.T) {
	cases := []struct {
		name string
		edit func(*Draft)
		want error
	}{
		{"empty title", func(d *Draft) { d.Title = "" }, ErrTitleRequired},
		{"zero price", func(d *Draft) { d.Price = "0" }, ErrInvalidPrice},
		{"negative price", func(d *Draft) { d.Price = "-10" }, ErrInvalidPrice},
		{"non-numeric price", func(d *Draft) { d.Price = "abc" }, ErrInvalidPrice},
		{"empty description", func(d *Draft) { d.Description = "" }, ErrDescriptionRequired},
		{"empty secure id", func(d *Draft) { d.SecureID = "" }, ErrSecureIDRequired},
		{"zero duration", func(d *Draft) { d.Duration = 0 }, ErrInvalidDuration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _, _, _ := newWizard(t)
			draft := validDraft()
			tc.edit(&draft)
			w.Update(context.Background(), draft)
			assert.ErrorIs(t, w.ValidateStep(StepBasicInfo), tc.want)
		})
	}
}

func TestInvalidPriceBlocksAdvancementAndNeverCallsCreate(t *testing.T) {
	w, api, _, _ := newWizard(t)
	draft := validDraft()
	draft.Price = "-1"
	w.Update(context.Background(), draft)

	_, err := w.Next(context.Background())
	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.Equal(t, StepBasicInfo, w.Draft().Step)

	_, err = w.Submit(context.Background(), &domain.User{ID: "u1", SecureID: "SD-BUYER"})
	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.Zero(t, api.lookupCalls)
	assert.Zero(t, api.createCalls)
}

func TestStepTwoRequiresDeliverables(t *testing.T) {
	w, _, _, _ := newWizard(t)
	draft := validDraft()
	draft.Deliverables = nil
	w.Update(context.Background(), draft)

	_, err := w.Next(context.Background())
	require.NoError(t, err)
	_, err = w.Next(context.Background())
	assert.ErrorIs(t, err, ErrNoDeliverables)
	assert.Equal(t, StepDeliverables, w.Draft().Step)
}

func TestStepThreeWarnsWithoutBlocking(t *testing.T) {
	w, _, _, _ := newWizard(t)
	w.Update(context.Background(), validDraft())

	_, err := w.Next(context.Background())
	require.NoError(t, err)
	_, err = w.Next(context.Background())
	require.NoError(t, err)

	warning, err := w.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, WarnNoAgreement, warning)
	assert.Equal(t, StepReview, w.Draft().Step)
}

func TestSelfDealRejectedBeforeLookup(t *testing.T) {
	w, api, _, _ := newWizard(t)
	draft := validDraft()
	draft.SecureID = "SD-ME"
	w.Update(context.Background(), draft)

	_, err := w.Submit(context.Background(), &domain.User{ID: "u1", SecureID: "SD-ME"})
	assert.ErrorIs(t, err, ErrSelfDeal)
	assert.Zero(t, api.lookupCalls)
	assert.Zero(t, api.createCalls)
}

func TestSubmitResolvesSellerAndConfirmCreates(t *testing.T) {
	w, api, _, kv := newWizard(t)
	w.Update(context.Background(), validDraft())
	buyer := &domain.User{ID: "u1", SecureID: "SD-BUYER", BusinessName: "Buyer Co"}

	seller, err := w.Submit(context.Background(), buyer)
	require.NoError(t, err)
	assert.Equal(t, "Acme Studio", seller.BusinessName)
	assert.Equal(t, 1, api.lookupCalls)
	assert.Zero(t, api.createCalls, "create must wait for explicit confirm")

	deal, err := w.ConfirmCreate(context.Background(), buyer)
	require.NoError(t, err)
	assert.Equal(t, "d-new", deal.ID)
	assert.Equal(t, 1, api.createCalls)

	// Draft is cleared only on successful submission.
	_, err = kv.Get(context.Background(), cache.KeyDraft)
	assert.ErrorIs(t, err, cache.ErrMiss)
	assert.Equal(t, StepBasicInfo, w.Draft().Step)
	assert.Empty(t, w.Draft().Title)
}

func TestConfirmWithoutSubmitIsRejected(t *testing.T) {
	w, api, _, _ := newWizard(t)
	w.Update(context.Background(), validDraft())

	_, err := w.ConfirmCreate(context.Background(), &domain.User{ID: "u1", SecureID: "SD-BUYER"})
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Zero(t, api.createCalls)
}

func TestCreateFailureKeepsDraft(t *testing.T) {
	w, api, _, kv := newWizard(t)
	api.createErr = errors.New("server unavailable")
	w.Update(context.Background(), validDraft())
	buyer := &domain.User{ID: "u1", SecureID: "SD-BUYER"}

	_, err := w.Submit(context.Background(), buyer)
	require.NoError(t, err)
	_, err = w.ConfirmCreate(context.Background(), buyer)
	require.Error(t, err)

	_, err = kv.Get(context.Background(), cache.KeyDraft)
	assert.NoError(t, err, "draft must survive a failed create")
	assert.Equal(t, "Website Design Project", w.Draft().Title)
}

func TestSellerNotFound(t *testing.T) {
	w, api, _, _ := newWizard(t)
	api.seller = &domain.User{}
	w.Update(context.Background(), validDraft())

	_, err := w.Submit(context.Background(), &domain.User{ID: "u1", SecureID: "SD-BUYER"})
	assert.ErrorIs(t, err, ErrSellerNotFound)
}

func TestDraftSurvivesRestart(t *testing.T) {
	kv := cache.NewMemory()
	api := &fakeAPI{}
	w := New(kv, api, &fakeMedia{}, zap.NewNop())
	draft := validDraft()
	w.Update(context.Background(), draft)
	_, err := w.Next(context.Background())
	require.NoError(t, err)

	resumed := New(kv, api, &fakeMedia{}, zap.NewNop())
	resumed.Load(context.Background())
	assert.Equal(t, StepDeliverables, resumed.Draft().Step)
	assert.Equal(t, "Website Design Project", resumed.Draft().Title)
}

func TestFailedUploadDiscardsItem(t *testing.T) {
	w, _, media, _ := newWizard(t)
	media.uploadErr = errors.New("media host down")

	_, err := w.AttachFile(context.Background(), "agreement.pdf", "application/pdf", []byte("pdf"), nil)
	require.Error(t, err)
	assert.Empty(t, w.Draft().Files)
}

func TestRemoveFileOnlyAfterRemoteDelete(t *testing.T) {
	w, _, media, _ := newWizard(t)
	_, err := w.AttachFile(context.Background(), "agreement.pdf", "application/pdf", []byte("pdf"), nil)
	require.NoError(t, err)
	require.Len(t, w.Draft().Files, 1)

	media.deleteErr = errors.New("delete rejected")
	err = w.RemoveFile(context.Background(), "pub_agreement.pdf")
	require.Error(t, err)
	assert.Len(t, w.Draft().Files, 1, "local state must not change when the remote delete fails")

	media.deleteErr = nil
	require.NoError(t, w.RemoveFile(context.Background(), "pub_agreement.pdf"))
	assert.Empty(t, w.Draft().Files)
	assert.Equal(t, []string{"pub_agreement.pdf"}, media.deleted)
}

func TestUpdateInvalidatesVerifiedSeller(t *testing.T) {
	w, api, _, _ := newWizard(t)
	w.Update(context.Background(), validDraft())
	buyer := &domain.User{ID: "u1", SecureID: "SD-BUYER"}

	_, err := w.Submit(context.Background(), buyer)
	require.NoError(t, err)

	// Editing the draft after verification forces a fresh lookup.
	w.Update(context.Background(), validDraft())
	_, err = w.ConfirmCreate(context.Background(), buyer)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Zero(t, api.createCalls)
}
