package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/storefront/internal/auth"
	"github.com/sakif/storefront/internal/model"
	"github.com/sakif/storefront/internal/service"
)

// SessionHandler exposes the session manager: who is signed in, register,
// login and logout.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGet      → current session state
//   - HandleRegister → create an account and sign it in
//   - HandleLogin    → sign an existing account in
//   - HandleLogout   → sign out and drop the token cookie
//
// On a successful register/login the response carries an HttpOnly "token"
// cookie naming the account. Cart handlers read it back to find the acting
// account id.
type SessionHandler struct {
	session *service.SessionManager
	tokens  *auth.TokenService
	logger  *slog.Logger
}

func NewSessionHandler(session *service.SessionManager, tokens *auth.TokenService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		session: session,
		tokens:  tokens,
		logger:  logger,
	}
}

type sessionView struct {
	Authenticated bool                 `json:"authenticated"`
	User          *model.PublicAccount `json:"user"`
	DisplayName   string               `json:"displayName,omitempty"`
	Loading       bool                 `json:"isLoading"`
}

type sessionResponse struct {
	Message string               `json:"message"`
	Notice  string               `json:"notice,omitempty"`
	User    *model.PublicAccount `json:"user"`
}

func (h *SessionHandler) view() sessionView {
	v := sessionView{Loading: h.session.IsLoading()}
	if acc, ok := h.session.CurrentAccount(); ok {
		pub := acc.Public()
		v.Authenticated = true
		v.User = &pub
		v.DisplayName = acc.DisplayName()
	}
	return v
}

// HandleGet returns the current session.
//
// HTTP: GET /api/session
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view())
}

// HandleRegister creates an account from the registration form.
//
// HTTP: POST /api/session/register
// Body: {"firstName","lastName","username","email","password","address"?}
func (h *SessionHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var data model.RegisterData
	if err := decodeJSON(w, r, &data); err != nil {
		writeError(w, err)
		return
	}

	h.respond(w, h.session.Register(r.Context(), data))
}

// HandleLogin signs in with email and password.
//
// HTTP: POST /api/session/login
// Body: {"email","password"}
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, err)
		return
	}

	h.respond(w, h.session.Login(r.Context(), creds))
}

// HandleLogout signs out. It always succeeds.
//
// HTTP: POST /api/session/logout
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	res := h.session.Logout(r.Context())
	auth.ClearTokenCookie(w)
	writeJSON(w, http.StatusOK, sessionResponse{Message: res.Message})
}

func (h *SessionHandler) respond(w http.ResponseWriter, res service.Result) {
	if !res.OK {
		writeResultError(w, res)
		return
	}

	token, err := h.tokens.Generate(res.Account.ID)
	if err != nil {
		// The session is signed in regardless; the client just cannot act
		// on the cart until it logs in again.
		h.logger.Error("token generation failed",
			slog.String("accountID", res.Account.ID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}
	auth.SetTokenCookie(w, token, h.tokens.TTL())

	pub := res.Account.Public()
	writeJSON(w, http.StatusOK, sessionResponse{
		Message: res.Message,
		Notice:  res.Notice,
		User:    &pub,
	})
}
