/**
 * @description
 * HTTP handler functions for the QuotaWatch REST API. Handlers parse
 * requests, call into the store and core services, and write JSON responses.
 * This layer stays thin: balance checking itself always happens in the
 * worker; the API only registers credentials and enqueues work.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/quotawatch/backend/internal/app"
	"github.com/quotawatch/backend/internal/domain"
	"github.com/quotawatch/backend/internal/store"
	"github.com/quotawatch/backend/pkg/rabbitmq"
)

// historyLimit caps one balance-history response.
const historyLimit = 500

// Store defines the database operations the API needs.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id int64) (*domain.User, error)
	ListPlatforms(ctx context.Context) ([]domain.Platform, error)
	FindPlatformByID(ctx context.Context, id int64) (*domain.Platform, error)
	CreateCredential(ctx context.Context, c *domain.Credential) (*domain.Credential, error)
	ListCredentialsByUser(ctx context.Context, userID int64) ([]domain.Credential, error)
	FindCredentialForUser(ctx context.Context, id, userID int64) (*domain.Credential, error)
	DeleteCredential(ctx context.Context, id, userID int64) error
	ListBalanceHistory(ctx context.Context, credentialID int64, limit int) ([]domain.BalanceRecord, error)
	UpsertRule(ctx context.Context, rule *domain.NotificationRule) (*domain.NotificationRule, error)
	DeleteRule(ctx context.Context, credentialID int64) error
}

// Encryptor seals plaintext secrets for storage.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
}

// Handler holds the dependencies the API handlers interact with.
type Handler struct {
	repo      Store
	crypto    Encryptor
	registry  app.AdapterResolver
	tasks     rabbitmq.Publisher
	jwtSecret string
	logger    *slog.Logger
}

// NewHandler creates a new Handler with its dependencies.
func NewHandler(repo Store, crypto Encryptor, registry app.AdapterResolver, tasks rabbitmq.Publisher, jwtSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		crypto:    crypto,
		registry:  registry,
		tasks:     tasks,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]string{"error": message})
}

// ---- auth ----

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if _, err := h.repo.FindUserByEmail(r.Context(), req.Email); err == nil {
		respondWithError(w, http.StatusConflict, "email already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusInternalServerError, "failed to check existing user")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := h.repo.CreateUser(r.Context(), req.Email, string(hash))
	if err != nil {
		h.logger.Error("failed to create user", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	respondWithJSON(w, http.StatusCreated, user)
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.repo.FindUserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if !user.IsActive {
		respondWithError(w, http.StatusForbidden, "account is not active")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondWithError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := IssueToken(h.jwtSecret, user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	respondWithJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.FindUserByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	respondWithJSON(w, http.StatusOK, user)
}

// ---- platforms ----

func (h *Handler) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.repo.ListPlatforms(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list platforms")
		return
	}
	if platforms == nil {
		platforms = []domain.Platform{}
	}
	respondWithJSON(w, http.StatusOK, platforms)
}

// ---- credentials ----

type createKeyRequest struct {
	Name       string         `json:"name"`
	APIKey     string         `json:"api_key"`
	PlatformID int64          `json:"platform_id"`
	Metadata   map[string]any `json:"metadata"`
}

func (h *Handler) handleListKeys(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())

	keys, err := h.repo.ListCredentialsByUser(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list credentials")
		return
	}
	if keys == nil {
		keys = []domain.Credential{}
	}
	respondWithJSON(w, http.StatusOK, keys)
}

func (h *Handler) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.APIKey == "" {
		respondWithError(w, http.StatusBadRequest, "name and api_key are required")
		return
	}

	if _, err := h.repo.FindPlatformByID(r.Context(), req.PlatformID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "platform not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to load platform")
		return
	}

	// Only the ciphertext ever reaches the store.
	encrypted, err := h.crypto.Encrypt(req.APIKey)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to encrypt secret")
		return
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	created, err := h.repo.CreateCredential(r.Context(), &domain.Credential{
		Name:            req.Name,
		EncryptedSecret: encrypted,
		Metadata:        metadata,
		UserID:          userID,
		PlatformID:      req.PlatformID,
	})
	if err != nil {
		h.logger.Error("failed to create credential", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to create credential")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	keyID, err := keyIDParam(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid credential id")
		return
	}

	if err := h.repo.DeleteCredential(r.Context(), keyID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "credential not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to delete credential")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type testKeyRequest struct {
	PlatformID int64          `json:"platform_id"`
	APIKey     string         `json:"api_key"`
	Metadata   map[string]any `json:"metadata"`
}

// handleTestKey runs one ad-hoc balance fetch without persisting anything,
// so users can validate a secret before registering it.
func (h *Handler) handleTestKey(w http.ResponseWriter, r *http.Request) {
	var req testKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	platform, err := h.repo.FindPlatformByID(r.Context(), req.PlatformID)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "platform not found")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load platform")
		return
	}

	adapter, err := h.registry.Resolve(platform.AdapterKey, req.APIKey, req.Metadata)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := adapter.FetchBalance(r.Context())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// handleTriggerCheck enqueues one check job for the credential. The 202
// acknowledges the enqueue, not the check itself.
func (h *Handler) handleTriggerCheck(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	keyID, err := keyIDParam(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid credential id")
		return
	}

	if _, err := h.repo.FindCredentialForUser(r.Context(), keyID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "credential not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to load credential")
		return
	}

	task := domain.CheckCredentialTask{CredentialID: keyID}
	if err := h.tasks.Publish(r.Context(), domain.TaskCheckCredential, task); err != nil {
		h.logger.Error("failed to enqueue manual check", "credential_id", keyID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to enqueue check")
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]any{
		"message":       "balance check enqueued",
		"credential_id": keyID,
	})
}

func (h *Handler) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	keyID, err := keyIDParam(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid credential id")
		return
	}

	if _, err := h.repo.FindCredentialForUser(r.Context(), keyID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "credential not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to load credential")
		return
	}

	records, err := h.repo.ListBalanceHistory(r.Context(), keyID, historyLimit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if records == nil {
		records = []domain.BalanceRecord{}
	}
	respondWithJSON(w, http.StatusOK, records)
}

// ---- notification rules ----

type ruleRequest struct {
	ThresholdAmount float64 `json:"threshold_amount"`
	Channel         string  `json:"channel"`
	ChannelAddress  string  `json:"channel_address"`
}

func (h *Handler) handleUpsertRule(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	keyID, err := keyIDParam(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid credential id")
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Channel != domain.ChannelEmail && req.Channel != domain.ChannelWebhook {
		respondWithError(w, http.StatusBadRequest, "channel must be email or webhook")
		return
	}
	if req.ChannelAddress == "" {
		respondWithError(w, http.StatusBadRequest, "channel_address is required")
		return
	}

	if _, err := h.repo.FindCredentialForUser(r.Context(), keyID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "credential not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to load credential")
		return
	}

	rule, err := h.repo.UpsertRule(r.Context(), &domain.NotificationRule{
		CredentialID:    keyID,
		ThresholdAmount: req.ThresholdAmount,
		Channel:         req.Channel,
		ChannelAddress:  req.ChannelAddress,
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to save rule")
		return
	}

	respondWithJSON(w, http.StatusOK, rule)
}

func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	keyID, err := keyIDParam(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid credential id")
		return
	}

	if _, err := h.repo.FindCredentialForUser(r.Context(), keyID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "credential not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to load credential")
		return
	}

	if err := h.repo.DeleteRule(r.Context(), keyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "rule not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func keyIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "keyID"), 10, 64)
}
