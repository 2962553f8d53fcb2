package api

import (
	"encoding/json"
	"net/http"

	"github.com/medsage/medsage-server/internal/api/respond"
	"github.com/medsage/medsage-server/internal/auth"
	"github.com/medsage/medsage-server/internal/model"
	"github.com/medsage/medsage-server/internal/services"
)

type UserHandler struct {
	svc *services.UserService
}

func NewUserHandler(svc *services.UserService) *UserHandler { return &UserHandler{svc: svc} }

type authResponse struct {
	Message      string      `json:"message"`
	User         *model.User `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	u, pair, err := h.svc.Register(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, authResponse{
		Message:      "User registered successfully",
		User:         u,
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	u, pair, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, authResponse{
		Message:      "Login successful",
		User:         u,
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, "authorization required")
		return
	}
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	// Body is optional; an empty or malformed body clears nothing.
	_ = json.NewDecoder(r.Body).Decode(&in)

	if err := h.svc.Logout(r.Context(), userID, in.RefreshToken); err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, "authorization required")
		return
	}
	u, err := h.svc.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]*model.User{"user": u})
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, "authorization required")
		return
	}
	var in struct {
		Username *string        `json:"username,omitempty"`
		Profile  *model.Profile `json:"profile,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), userID, in.Username, in.Profile)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Profile updated successfully",
		"user":    u,
	})
}
