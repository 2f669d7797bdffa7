package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"mediation-app/internal/auth"
	"mediation-app/internal/models"
	"mediation-app/internal/services"
	"mediation-app/pkg/logger"
)

type MediationHandlers struct {
	mediations  *services.MediationService
	authService *auth.Service
	validate    *validator.Validate
}

func NewMediationHandlers(mediations *services.MediationService, authService *auth.Service) *MediationHandlers {
	return &MediationHandlers{
		mediations:  mediations,
		authService: authService,
		validate:    validator.New(),
	}
}

func (h *MediationHandlers) CreateMediation(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authService.IdentityFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CreateMediationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "invalid mediation request: "+err.Error(), http.StatusBadRequest)
		return
	}

	mediationID, err := h.mediations.CreateMediation(r.Context(), &req, identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"mediation_id": mediationID.String()})
}

func (h *MediationHandlers) ListMediations(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authService.IdentityFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	mediations, err := h.mediations.GetAllMediationsByUser(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if mediations == nil {
		mediations = []*models.MediationOverview{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"mediations": mediations})
}

func (h *MediationHandlers) CloseMediation(w http.ResponseWriter, r *http.Request, rawID string) {
	identity, err := h.authService.IdentityFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	mediationID, err := uuid.Parse(rawID)
	if err != nil {
		http.Error(w, "invalid mediation id", http.StatusBadRequest)
		return
	}

	var req models.CloseMediationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "close reason is required", http.StatusBadRequest)
		return
	}

	if err := h.mediations.CloseMediation(r.Context(), identity.UserID, mediationID, req.Reason); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reason": req.Reason})
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := services.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("Internal error: %v", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Error encoding response: %v", err)
	}
}
