// Package wizard drives the four-step deal creation flow: basic info,
// deliverables, documents/images, review. The draft survives restarts via
// the cache and is cleared only on a successful create.
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"securedeal-client/internal/apiclient"
	"securedeal-client/internal/cache"
	"securedeal-client/internal/domain"
	"securedeal-client/internal/upload"
)

const (
	StepBasicInfo    = 1
	StepDeliverables = 2
	StepDocuments    = 3
	StepReview       = 4
)

// Validation surfaces, matching the messages shown inline in the form.
var (
	ErrTitleRequired        = errors.New("please enter a deal title")
	ErrInvalidPrice         = errors.New("please enter a valid price")
	ErrDescriptionRequired  = errors.New("please provide a description")
	ErrSecureIDRequired     = errors.New("please enter the seller's SecureDeal ID")
	ErrInvalidDuration      = errors.New("please set a valid duration for the deal")
	ErrNoDeliverables       = errors.New("please add at least one deliverable")
	ErrSelfDeal             = errors.New("you cannot create a deal with your own Secure ID")
	ErrSellerNotResolved    = errors.New("counterparty not verified yet")
	ErrSellerNotFound       = errors.New("seller not found, check the SecureDeal ID")
	ErrConfirmationRequired = errors.New("confirm the verified seller before submitting")
)

// WarnNoAgreement does not block step 3; missing documents only weaken
// dispute resolution.
const WarnNoAgreement = "no agreement documents uploaded, this may affect dispute resolution"

// Draft is everything the wizard has accumulated, persisted wholesale on
// every change.
type Draft struct {
	Title        string               `json:"title"`
	Price        string               `json:"price"`
	Currency     string               `json:"currency"`
	Description  string               `json:"description"`
	SecureID     string               `json:"secureId"`
	Duration     int                  `json:"duration"`
	Deliverables []domain.Deliverable `json:"deliverables"`
	Images       []domain.MediaRef    `json:"images"`
	Files        []domain.MediaRef    `json:"files"`
	Step         int                  `json:"step"`
}

// DealAPI is the slice of the REST client the wizard needs.
type DealAPI interface {
	GetSellerDetails(ctx context.Context, secureID string) (*domain.User, error)
	CreateDeal(ctx context.Context, req apiclient.CreateDealRequest) (*domain.Deal, error)
}

// Media uploads and deletes draft attachments.
type Media interface {
	Upload(ctx context.Context, name, mimeType string, content []byte, progress upload.ProgressFunc) (*domain.MediaRef, error)
	Delete(ctx context.Context, publicID string) error
}

type Wizard struct {
	mu     sync.Mutex
	draft  Draft
	seller *domain.User

	store  cache.Store
	api    DealAPI
	media  Media
	logger *zap.Logger
}

func New(store cache.Store, api DealAPI, media Media, logger *zap.Logger) *Wizard {
	return &Wizard{
		draft:  emptyDraft(),
		store:  store,
		api:    api,
		media:  media,
		logger: logger,
	}
}

func emptyDraft() Draft {
	return Draft{Currency: "USDC", Step: StepBasicInfo}
}

// Load restores a persisted draft so a restart resumes mid-wizard. A corrupt
// draft is dropped rather than wedging the flow.
func (w *Wizard) Load(ctx context.Context) {
	raw, err := w.store.Get(ctx, cache.KeyDraft)
	if err != nil {
		return
	}
	var draft Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		w.logger.Warn("dropping corrupt deal draft", zap.Error(err))
		_ = w.store.Delete(ctx, cache.KeyDraft)
		return
	}
	if draft.Step < StepBasicInfo || draft.Step > StepReview {
		draft.Step = StepBasicInfo
	}
	w.mu.Lock()
	w.draft = draft
	w.mu.Unlock()
}

func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// Update merges edited fields and persists the draft. Step and attachments
// are owned by their dedicated methods and ignored here.
func (w *Wizard) Update(ctx context.Context, edit Draft) {
	w.mu.Lock()
	defer w.mu.Unlock()
	step := w.draft.Step
	images, files := w.draft.Images, w.draft.Files
	w.draft = edit
	w.draft.Step = step
	w.draft.Images = images
	w.draft.Files = files
	if w.draft.Currency == "" {
		w.draft.Currency = "USDC"
	}
	// Any change to the counterparty invalidates a prior verification.
	w.seller = nil
	w.persistLocked(ctx)
}

// ValidateStep applies the synchronous gate for one step.
func (w *Wizard) ValidateStep(step int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validateStepLocked(step)
}

func (w *Wizard) validateStepLocked(step int) error {
	switch step {
	case StepBasicInfo:
		if w.draft.Title == "" {
			return ErrTitleRequired
		}
		price, err := strconv.ParseFloat(w.draft.Price, 64)
		if err != nil || price <= 0 {
			return ErrInvalidPrice
		}
		if w.draft.Description == "" {
			return ErrDescriptionRequired
		}
		if w.draft.SecureID == "" {
			return ErrSecureIDRequired
		}
		if w.draft.Duration <= 0 {
			return ErrInvalidDuration
		}
	case StepDeliverables:
		if len(w.draft.Deliverables) == 0 {
			return ErrNoDeliverables
		}
	}
	return nil
}

// Next validates the current step and advances. The returned warning is
// non-blocking (missing agreement documents on step 3).
func (w *Wizard) Next(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.validateStepLocked(w.draft.Step); err != nil {
		return "", err
	}
	var warning string
	if w.draft.Step == StepDocuments && len(w.draft.Files) == 0 {
		warning = WarnNoAgreement
	}
	if w.draft.Step < StepReview {
		w.draft.Step++
		w.persistLocked(ctx)
	}
	return warning, nil
}

func (w *Wizard) Back(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draft.Step > StepBasicInfo {
		w.draft.Step--
		w.persistLocked(ctx)
	}
}

// AttachFile uploads an agreement document and records it in the draft.
// A failed upload leaves the draft untouched.
func (w *Wizard) AttachFile(ctx context.Context, name, mimeType string, content []byte, progress upload.ProgressFunc) (*domain.MediaRef, error) {
	ref, err := w.media.Upload(ctx, name, mimeType, content, progress)
	if err != nil {
		return nil, fmt.Errorf("unable to upload file: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Files = append(w.draft.Files, *ref)
	w.persistLocked(ctx)
	return ref, nil
}

func (w *Wizard) AttachImage(ctx context.Context, name, mimeType string, content []byte, progress upload.ProgressFunc) (*domain.MediaRef, error) {
	ref, err := w.media.Upload(ctx, name, mimeType, content, progress)
	if err != nil {
		return nil, fmt.Errorf("unable to upload image: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Images = append(w.draft.Images, *ref)
	w.persistLocked(ctx)
	return ref, nil
}

// RemoveFile deletes the remote copy first; local state only changes when
// the media host confirmed the delete.
func (w *Wizard) RemoveFile(ctx context.Context, publicID string) error {
	if err := w.media.Delete(ctx, publicID); err != nil {
		return fmt.Errorf("unable to delete file: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Files = removeRef(w.draft.Files, publicID)
	w.persistLocked(ctx)
	return nil
}

func (w *Wizard) RemoveImage(ctx context.Context, publicID string) error {
	if err := w.media.Delete(ctx, publicID); err != nil {
		return fmt.Errorf("unable to delete image: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Images = removeRef(w.draft.Images, publicID)
	w.persistLocked(ctx)
	return nil
}

func removeRef(refs []domain.MediaRef, publicID string) []domain.MediaRef {
	kept := refs[:0]
	for _, r := range refs {
		if r.PublicID != publicID {
			kept = append(kept, r)
		}
	}
	return kept
}

// Submit re-validates the gated steps, rejects self-deals before any network
// call, then resolves the counterparty for explicit confirmation.
func (w *Wizard) Submit(ctx context.Context, current *domain.User) (*domain.User, error) {
	w.mu.Lock()
	for _, step := range []int{StepBasicInfo, StepDeliverables, StepDocuments} {
		if err := w.validateStepLocked(step); err != nil {
			w.mu.Unlock()
			return nil, err
		}
	}
	secureID := w.draft.SecureID
	w.mu.Unlock()

	if current.SecureID == secureID {
		return nil, ErrSelfDeal
	}

	seller, err := w.api.GetSellerDetails(ctx, secureID)
	if err != nil {
		return nil, err
	}
	if seller == nil || seller.SecureID == "" {
		return nil, ErrSellerNotFound
	}

	w.mu.Lock()
	w.seller = seller
	w.mu.Unlock()
	return seller, nil
}

// ConfirmCreate fires the create call after the user confirmed the resolved
// counterparty. On success the draft is cleared and the created deal
// returned for the caller to prepend to the store.
func (w *Wizard) ConfirmCreate(ctx context.Context, current *domain.User) (*domain.Deal, error) {
	w.mu.Lock()
	if w.seller == nil {
		w.mu.Unlock()
		return nil, ErrConfirmationRequired
	}
	req := apiclient.CreateDealRequest{
		Title:        w.draft.Title,
		Price:        w.draft.Price,
		Currency:     w.draft.Currency,
		Description:  w.draft.Description,
		SecureID:     w.draft.SecureID,
		Duration:     w.draft.Duration,
		Deliverables: w.draft.Deliverables,
		Images:       w.draft.Images,
		Files:        w.draft.Files,
		UserID:       current.ID,
		From:         current.BusinessName,
		To:           w.seller.BusinessName,
	}
	w.mu.Unlock()

	deal, err := w.api.CreateDeal(ctx, req)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.draft = emptyDraft()
	w.seller = nil
	if err := w.store.Delete(ctx, cache.KeyDraft); err != nil {
		w.logger.Warn("draft cache delete failed", zap.Error(err))
	}
	w.mu.Unlock()

	w.logger.Info("deal created", zap.String("dealId", deal.ID), zap.String("to", deal.To))
	return deal, nil
}

func (w *Wizard) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(w.draft)
	if err != nil {
		w.logger.Warn("draft encode failed", zap.Error(err))
		return
	}
	if err := w.store.Put(ctx, cache.KeyDraft, raw); err != nil {
		w.logger.Warn("draft cache write failed", zap.Error(err))
	}
}
