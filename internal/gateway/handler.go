// Package gateway exposes the client's user actions over a local HTTP
// facade so a thin UI process can drive the session, the deal list, the
// creation wizard and the payment flow.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"securedeal-client/internal/apiclient"
	"securedeal-client/internal/domain"
	"securedeal-client/internal/payment"
	"securedeal-client/internal/session"
	"securedeal-client/internal/store"
	"securedeal-client/internal/wizard"
)

const maxUploadBytes = 20 << 20

type Handler struct {
	api      *apiclient.Client
	session  *session.Session
	deals    *store.DealStore
	wizard   *wizard.Wizard
	payments *payment.Orchestrator
	logger   *zap.Logger
}

func NewHandler(
	api *apiclient.Client,
	sess *session.Session,
	deals *store.DealStore,
	wiz *wizard.Wizard,
	payments *payment.Orchestrator,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		api:      api,
		session:  sess,
		deals:    deals,
		wizard:   wiz,
		payments: payments,
		logger:   logger,
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
}

// fail maps remote-call failures; a 401 from the API wipes the session so
// the UI redirects to login.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		if clearErr := h.session.Clear(r.Context()); clearErr != nil {
			h.logger.Warn("session clear failed", zap.Error(clearErr))
		}
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeError(w, http.StatusBadGateway, err)
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

// requireUser guards authenticated routes on session validity.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) *domain.User {
	if !h.session.Valid(time.Now()) {
		writeError(w, http.StatusUnauthorized, errors.New("not logged in"))
		return nil
	}
	user := h.session.CurrentUser()
	if user == nil {
		writeError(w, http.StatusUnauthorized, errors.New("no user loaded"))
		return nil
	}
	return user
}

// ---- auth ----

type otpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Action   string `json:"action"`
}

func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.api.SendOTP(r.Context(), req.Email, req.Password, req.Action); err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "verification code sent")
}

type signupRequest struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	Location         string `json:"location"`
	VerificationCode string `json:"verificationCode"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := h.api.Signup(r.Context(), apiclient.SignupRequest{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Password:         req.Password,
		Location:         req.Location,
		VerificationCode: req.VerificationCode,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	VerificationCode string `json:"verificationCode"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Email == "" || req.Password == "" || req.VerificationCode == "" {
		writeError(w, http.StatusBadRequest, errors.New("email, password and verification code are required"))
		return
	}
	token, user, err := h.api.Login(r.Context(), req.Email, req.Password, req.VerificationCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.session.Establish(r.Context(), token, user); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.bootstrap(user)
	writeData(w, http.StatusOK, user)
}

// bootstrap runs the two independent session-start fetches; they race to
// completion with no ordering dependency.
func (h *Handler) bootstrap(user *domain.User) {
	h.deals.WarmStart(context.Background(), user.ID)

	go func() {
		fresh, err := h.api.GetCurrentUser(context.Background())
		if err != nil {
			h.logger.Warn("current user refresh failed", zap.Error(err))
			return
		}
		if err := h.session.SetUser(context.Background(), fresh); err != nil {
			h.logger.Warn("user cache write failed", zap.Error(err))
		}
	}()
	go func() {
		if err := h.deals.Refresh(context.Background(), h.fetcher(), user); err != nil {
			h.logger.Warn("deal list refresh failed", zap.Error(err))
		}
	}()
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if user := h.requireUser(w, r); user == nil {
		return
	}
	if err := h.api.Logout(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.session.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeData(w, http.StatusOK, "logged out")
}

// ---- profile ----

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	var edit domain.User
	if err := decodeBody(r, &edit); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	edit.ID = user.ID
	edit.SecureID = user.SecureID

	updated, err := h.api.UpdateUser(r.Context(), &edit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.session.SetUser(r.Context(), updated); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

type addWalletRequest struct {
	Name    string            `json:"name"`
	Address string            `json:"address"`
	Type    domain.WalletType `json:"walletType"`
}

// AddWallet validates the address locally before it ever reaches the
// profile-update call.
func (h *Handler) AddWallet(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	var req addWalletRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	entry := domain.WalletAddress{
		ID:      ulid.Make().String(),
		Name:    req.Name,
		Address: req.Address,
		Type:    req.Type,
	}
	// Mutate a copy; the session only changes after the remote call succeeds.
	edit := *user
	edit.Wallets = append([]domain.WalletAddress(nil), user.Wallets...)
	if err := edit.AddWallet(entry); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	updated, err := h.api.UpdateUser(r.Context(), &edit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.session.SetUser(r.Context(), updated); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (h *Handler) RemoveWallet(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	edit := *user
	edit.Wallets = append([]domain.WalletAddress(nil), user.Wallets...)
	edit.RemoveWallet(chi.URLParam(r, "walletID"))

	updated, err := h.api.UpdateUser(r.Context(), &edit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.session.SetUser(r.Context(), updated); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

// ---- deals ----

type dealListResponse struct {
	Deals      []domain.Deal    `json:"deals"`
	Pagination store.Pagination `json:"pagination"`
	Loading    bool             `json:"loading"`
	Error      string           `json:"error,omitempty"`
}

func (h *Handler) ListDeals(w http.ResponseWriter, r *http.Request) {
	if user := h.requireUser(w, r); user == nil {
		return
	}
	writeData(w, http.StatusOK, dealListResponse{
		Deals:      h.deals.Deals(),
		Pagination: h.deals.Pagination(),
		Loading:    h.deals.Loading(),
		Error:      h.deals.Err(),
	})
}

// fetcher adapts the API client to the store's fetch seam.
func (h *Handler) fetcher() store.DealFetcher {
	return fetchAdapter{h.api}
}

// NewFetcher exposes the same adapter for boot-time refresh in main.
func NewFetcher(api *apiclient.Client) store.DealFetcher {
	return fetchAdapter{api}
}

type fetchAdapter struct {
	api *apiclient.Client
}

func (f fetchAdapter) UserDeals(ctx context.Context, userID, secureID string, page, limit int) (*store.Page, error) {
	result, err := f.api.UserDeals(ctx, userID, secureID, page, limit)
	if err != nil {
		return nil, err
	}
	return &store.Page{Deals: result.Deals, TotalPages: result.TotalPages, Limit: result.Limit}, nil
}

func (h *Handler) RefreshDeals(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		h.deals.SetPage(page)
	}
	if err := h.deals.Refresh(r.Context(), h.fetcher(), user); err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, h.deals.Deals())
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	if user := h.requireUser(w, r); user == nil {
		return
	}
	requests, err := h.api.UserRequests(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, requests)
}

// transition wires the accept/decline answer: remote first, local state and
// cache only after the remote call reported success.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, answer string, to domain.DealStatus) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	dealID := chi.URLParam(r, "dealID")

	if err := h.api.AcceptRequest(r.Context(), user.SecureID, dealID, answer); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deals.ApplyTransition(r.Context(), user.ID, dealID, to); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeData(w, http.StatusOK, to)
}

func (h *Handler) AcceptDeal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, apiclient.RequestAccepted, domain.StatusAwaitingPayment)
}

func (h *Handler) DeclineDeal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, apiclient.RequestDeclined, domain.StatusDeclined)
}

func (h *Handler) CancelDeal(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	dealID := chi.URLParam(r, "dealID")

	if err := h.api.CancelDeal(r.Context(), user.ID, dealID); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deals.ApplyTransition(r.Context(), user.ID, dealID, domain.StatusCanceled); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeData(w, http.StatusOK, domain.StatusCanceled)
}

func (h *Handler) DeleteDeal(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	dealID := chi.URLParam(r, "dealID")

	if err := h.api.DeleteDeal(r.Context(), user.SecureID, dealID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.deals.Remove(r.Context(), user.ID, dealID)
	writeData(w, http.StatusOK, "deleted")
}

// ---- wizard ----

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	if user := h.requireUser(w, r); user == nil {
		return
	}
	writeData(w, http.StatusOK, h.wizard.Draft())
}

func (h *Handler) PutDraft(w http.ResponseWriter, r *http.Request) {
	if user := h.requireUser(w, r); user == nil {
		return
	}
	var draft wizard.Draft
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.wizard.Update(r.Context(), draft)
	writeData(w, http.StatusOK, h.wizard.Draft())
}

type stepResponse struct {
	Draft   wizard.Draft `json:"draft"`
	Warning string       `json:"warning,omitempty"`
}

func (h *Handler) NextStep(w http.ResponseWriter, r *http.Request) {
	if user := h.requireUser(w, r); user == nil {
		return
	}
	warning, err := h.wizard.Next(r.Context())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeData(w, http.StatusOK, stepResponse{Draft: h.wizard.Draft(), Warning: warning})
}

func (h *Handler) BackStep(w http.ResponseWriter, r *http.Request) {
	if user := h.requireUser(w, r); user == nil {
		return
	}
	h.wizard.Back(r.Context())
	writeData(w, http.StatusOK, h.wizard.Draft())
}

// attach reads one multipart file and hands it to the wizard. kind selects
// documents vs images.
func (h *Handler) attach(w http.ResponseWriter, r *http.Request, kind string) {
	if user := h.requireUser(w, r); user == nil {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	var ref *domain.MediaRef
	if kind == "images" {
		ref, err = h.wizard.AttachImage(r.Context(), header.Filename, mimeType, content, nil)
	} else {
		ref, err = h.wizard.AttachFile(r.Context(), header.Filename, mimeType, content, nil)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, ref)
}

func (h *Handler) AttachFile(w http.ResponseWriter, r *http.Request)  { h.attach(w, r, "files") }
func (h *Handler) AttachImage(w http.ResponseWriter, r *http.Request) { h.attach(w, r, "images") }

func (h *Handler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	if user := h.requireUser(w, r); user == nil {
		return
	}
	if err := h.wizard.RemoveFile(r.Context(), chi.URLParam(r, "publicID")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "removed")
}

func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	if user := h.requireUser(w, r); user == nil {
		return
	}
	if err := h.wizard.RemoveImage(r.Context(), chi.URLParam(r, "publicID")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "removed")
}

// SubmitDraft resolves the counterparty and returns it for confirmation.
func (h *Handler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	seller, err := h.wizard.Submit(r.Context(), user)
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			h.fail(w, r, err)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeData(w, http.StatusOK, seller)
}

// ConfirmDraft fires the create call and prepends the new deal.
func (h *Handler) ConfirmDraft(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	deal, err := h.wizard.ConfirmCreate(r.Context(), user)
	if err != nil {
		if errors.Is(err, wizard.ErrConfirmationRequired) {
			writeError(w, http.StatusConflict, err)
			return
		}
		h.fail(w, r, err)
		return
	}
	h.deals.Prepend(r.Context(), user.ID, *deal)
	writeData(w, http.StatusCreated, deal)
}

// ---- payment ----

func (h *Handler) WalletBalances(w http.ResponseWriter, r *http.Request) {
	if user := h.requireUser(w, r); user == nil {
		return
	}
	balances, err := h.payments.RefreshBalances(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrWalletNotConnected) {
			writeError(w, http.StatusConflict, err)
			return
		}
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"address":  balances.Address,
		"sol":      float64(balances.Lamports) / 1e9,
		"usdc":     balances.TokenUI(),
		"required": h.payments.Amount(),
	})
}

type payRequest struct {
	DealID string `json:"dealId"`
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	var req payRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	deal, ok := h.deals.Get(req.DealID)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("deal not found"))
		return
	}
	if deal.ProgressStatus != domain.StatusAwaitingPayment {
		writeError(w, http.StatusConflict, errors.New("deal is not awaiting payment"))
		return
	}

	result, err := h.payments.Pay(r.Context(), deal.ID)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, domain.ErrSubmissionFailed) || errors.Is(err, domain.ErrConfirmationTimeout) {
			status = http.StatusBadGateway
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error(), "data": result})
		return
	}
	writeData(w, http.StatusOK, result)
}
