package member

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-club-go/internal/member/entity"
	"github.com/ovaphlow/pitchfork/service-club-go/internal/session"
)

// Handler exposes the member API over JSON.
type Handler struct {
	svc      *Service
	sessions *session.Service
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, sessions *session.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

// memberView is the public shape of a member.
type memberView struct {
	*entity.Member
	FullName    string `json:"full_name"`
	FullAddress string `json:"full_address"`
}

func view(m *entity.Member) memberView {
	return memberView{Member: m, FullName: m.FullName(true), FullAddress: m.FullAddress()}
}

// RegisterResponse response body containing new member id.
type RegisterResponse struct {
	ID int64 `json:"member_id"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req entity.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid registration payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	m := entity.FromRegistration(req)
	if err := h.svc.Save(r.Context(), m); err != nil {
		h.writeError(w, "registration failed", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, RegisterResponse{ID: m.ID})
}

// LoginRequest login payload; identifier is a member id or an email address.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResponse carries the session token and the authentication result.
type LoginResponse struct {
	Token string `json:"token"`
	AuthResult
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	res, err := h.svc.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.writeError(w, "login failed", err)
		return
	}
	tok, err := h.sessions.Issue(res.MemberID, res.IsAdministrator)
	if err != nil {
		h.writeError(w, "issue session", err)
		return
	}
	h.writeJSON(w, http.StatusOK, LoginResponse{Token: tok, AuthResult: *res})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, 0, true); !ok {
		return
	}
	members, err := h.svc.FindAll(r.Context())
	if err != nil {
		h.writeError(w, "list members", err)
		return
	}
	out := make([]memberView, 0, len(members))
	for _, m := range members {
		out = append(out, view(m))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, ok := h.authorize(w, r, id, true); !ok {
		return
	}
	m, err := h.svc.Find(r.Context(), id)
	if err != nil {
		h.writeError(w, "find member", err)
		return
	}
	h.writeJSON(w, http.StatusOK, view(m))
}

// ProfileRequest holds the editable profile fields.
type ProfileRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address     string `json:"address"`
	PostalCode  string `json:"postal_code"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, ok := h.authorize(w, r, id, true); !ok {
		return
	}
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	m, err := h.svc.Find(r.Context(), id)
	if err != nil {
		h.writeError(w, "find member", err)
		return
	}
	m.FirstName = req.FirstName
	m.LastName = req.LastName
	m.Address = req.Address
	m.PostalCode = req.PostalCode
	m.PhoneNumber = req.PhoneNumber
	m.Email = req.Email
	if err := h.svc.Save(r.Context(), m); err != nil {
		h.writeError(w, "update member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PasswordRequest changes the password of the logged-in member.
type PasswordRequest struct {
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, ok := h.authorize(w, r, id, false); !ok {
		return
	}
	var req PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	m, err := h.svc.Find(r.Context(), id)
	if err != nil {
		h.writeError(w, "find member", err)
		return
	}
	if req.Password == "" {
		h.writeError(w, "change password", fieldError(entity.FieldPassword, "A new password is required."))
		return
	}
	m.Password = req.Password
	m.PasswordConfirmation = req.PasswordConfirmation
	if err := h.svc.Save(r.Context(), m); err != nil {
		h.writeError(w, "change password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, ok := h.authorize(w, r, 0, true); !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, "delete member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorize requires a session belonging to self (when non-zero), or to an
// administrator when adminAllowed is set.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, self int64, adminAllowed bool) (*session.Claims, bool) {
	claims, ok := session.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login required"})
		return nil, false
	}
	if (self != 0 && claims.MemberID() == self) || (adminAllowed && claims.Administrator) {
		return claims, true
	}
	h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	return nil, false
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid member id"})
		return 0, false
	}
	return id, true
}

// writeError maps the error taxonomy onto status codes. Only validation
// messages reach the client; everything else is logged.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var ve *ValidationError
	var ae *AuthenticationError
	switch {
	case errors.As(err, &ve):
		h.logger.Debugw(op, "err", err)
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": ve.Fields})
	case errors.As(err, &ae):
		h.logger.Debugw(op, "err", err)
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	case errors.Is(err, ErrMemberNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
	default:
		h.logger.Errorw(op, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
