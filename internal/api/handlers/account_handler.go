package handlers

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/schoolmail-backend/internal/api/response"
	"github.com/familyhub/schoolmail-backend/internal/mail"
	"github.com/familyhub/schoolmail-backend/internal/models"
	"github.com/familyhub/schoolmail-backend/internal/repository"
	"github.com/familyhub/schoolmail-backend/internal/validator"
)

// AccountHandler handles email account HTTP requests
type AccountHandler struct {
	accountRepo repository.AccountRepository
	cipher      *mail.CredentialCipher
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountRepo repository.AccountRepository, cipher *mail.CredentialCipher) *AccountHandler {
	return &AccountHandler{
		accountRepo: accountRepo,
		cipher:      cipher,
	}
}

// CreateAccountRequest is the payload for registering a mailbox.
// Credentials arrive in plaintext over TLS and are sealed before the
// row is written; they are never echoed back.
type CreateAccountRequest struct {
	EmailAddress string `json:"email_address"`
	DisplayName  string `json:"display_name"`
	Provider     string `json:"provider"`

	// IMAP provider fields
	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"imap_password"`
	UseSSL       *bool  `json:"use_ssl"`

	// Gmail provider fields
	ClientID      string   `json:"client_id"`
	ClientSecret  string   `json:"client_secret"`
	RefreshToken  string   `json:"refresh_token"`
	SenderDomains []string `json:"sender_domains"`

	SyncFrequencyMinutes int    `json:"sync_frequency_minutes"`
	FetchSinceDate       string `json:"fetch_since_date"`
}

// Create handles POST /api/accounts
func (h *AccountHandler) Create(c echo.Context) error {
	userID := currentUserID(c)
	if userID == "" {
		return response.BadRequest(c, "user id is required")
	}

	var req CreateAccountRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	if err := validator.ValidateEmail(req.EmailAddress); err != nil {
		return response.BadRequest(c, "invalid email address")
	}

	account := &models.EmailAccount{
		UserID:               userID,
		EmailAddress:         req.EmailAddress,
		DisplayName:          validator.SanitizeString(req.DisplayName, 255),
		Provider:             models.Provider(req.Provider),
		SyncFrequencyMinutes: req.SyncFrequencyMinutes,
		IsActive:             true,
		LastSyncStatus:       models.SyncStatusIdle,
	}
	if account.SyncFrequencyMinutes <= 0 {
		account.SyncFrequencyMinutes = 60
	}

	if req.FetchSinceDate != "" {
		since, err := time.Parse("2006-01-02", req.FetchSinceDate)
		if err != nil {
			return response.BadRequest(c, "fetch_since_date must be YYYY-MM-DD")
		}
		account.FetchSinceDate = since
	} else {
		account.FetchSinceDate = time.Now().AddDate(0, -1, 0)
	}

	switch account.Provider {
	case models.ProviderIMAP:
		if req.IMAPHost == "" || req.IMAPUsername == "" || req.IMAPPassword == "" {
			return response.BadRequest(c, "imap_host, imap_username and imap_password are required")
		}
		port := req.IMAPPort
		if port == 0 {
			port = 993
		}
		useSSL := true
		if req.UseSSL != nil {
			useSSL = *req.UseSSL
		}

		sealed, err := h.cipher.EncryptIMAPCredentials(mail.IMAPCredentials{
			Host:     req.IMAPHost,
			Port:     port,
			Username: req.IMAPUsername,
			Password: req.IMAPPassword,
			UseSSL:   useSSL,
		})
		if err != nil {
			return response.InternalError(c, "failed to store credentials")
		}
		account.CredentialsEncrypted = sealed
		account.IMAPHost = req.IMAPHost
		account.IMAPPort = port
		account.IMAPUsername = req.IMAPUsername
		account.UseSSL = useSSL

	case models.ProviderGmail:
		if req.ClientID == "" || req.ClientSecret == "" || req.RefreshToken == "" {
			return response.BadRequest(c, "client_id, client_secret and refresh_token are required")
		}
		for _, d := range req.SenderDomains {
			if err := validator.ValidateDomain(d); err != nil {
				return response.BadRequest(c, "invalid sender domain: "+d)
			}
		}

		sealed, err := h.cipher.EncryptOAuthCredentials(mail.OAuthCredentials{
			ClientID:     req.ClientID,
			ClientSecret: req.ClientSecret,
			RefreshToken: req.RefreshToken,
		})
		if err != nil {
			return response.InternalError(c, "failed to store credentials")
		}
		account.CredentialsEncrypted = sealed
		account.SenderDomains = joinDomains(req.SenderDomains)

	default:
		return response.BadRequest(c, "provider must be imap or gmail")
	}

	if err := h.accountRepo.Create(c.Request().Context(), account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return response.Conflict(c, "account already exists")
		}
		return response.InternalError(c, "failed to create account")
	}

	return response.Created(c, account)
}

// List handles GET /api/accounts
func (h *AccountHandler) List(c echo.Context) error {
	userID := currentUserID(c)
	if userID == "" {
		return response.BadRequest(c, "user id is required")
	}

	accounts, err := h.accountRepo.ListActiveByUser(c.Request().Context(), userID)
	if err != nil {
		return response.InternalError(c, "failed to list accounts")
	}

	return response.Success(c, accounts)
}

// Get handles GET /api/accounts/:id
func (h *AccountHandler) Get(c echo.Context) error {
	account, err := h.accountRepo.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "account not found")
		}
		return response.InternalError(c, "failed to get account")
	}

	return response.Success(c, account)
}

// currentUserID resolves the authenticated user. The gateway in front
// of this service authenticates and forwards the id.
func currentUserID(c echo.Context) string {
	if id := c.Request().Header.Get("X-User-ID"); id != "" {
		return id
	}
	return c.QueryParam("user_id")
}

func joinDomains(domains []string) string {
	out := ""
	for i, d := range domains {
		if i > 0 {
			out += ","
		}
		out += d
	}
	return out
}
