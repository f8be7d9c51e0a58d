package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/savegram-io/savegram/internal/gate"
	"github.com/savegram-io/savegram/internal/models"
)

// requireAdmin gates an admin handler. It writes the response itself on
// denial and returns the acting admin's id otherwise.
func (api *Api) requireAdmin(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}

	decision, err := api.gate.Evaluate(userID, models.ProfileHint{}, gate.AdminOnly)
	if err != nil {
		log.Printf("Error evaluating admin access for user %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "access check failed")
		return 0, false
	}
	if !decision.Allowed {
		writeDenial(w, decision)
		return 0, false
	}
	return userID, true
}

func targetUserID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}

func (api *Api) CancelAllTasksHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := api.requireAdmin(w, r)
	if !ok {
		return
	}

	n := api.registry.CancelAll()
	log.Printf("Admin %d canceled %d running tasks", admin, n)
	writeJSON(w, http.StatusOK, map[string]interface{}{"canceled": n})
}

func (api *Api) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.requireAdmin(w, r); !ok {
		return
	}

	stats, err := api.store.GetStats(time.Now())
	if err != nil {
		log.Printf("Error collecting stats: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (api *Api) BroadcastHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := api.requireAdmin(w, r)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ids, err := api.store.ListActiveUserIDs()
	if err != nil {
		log.Printf("Error listing broadcast recipients: %v", err)
		writeError(w, http.StatusInternalServerError, "broadcast failed")
		return
	}

	// Delivery happens at the messaging edge; this records the send
	rec := &models.BroadcastRecord{
		Message:         req.Message,
		SentBy:          admin,
		TotalRecipients: len(ids),
		SuccessCount:    len(ids),
	}
	if err := api.store.AppendBroadcastRecord(rec); err != nil {
		log.Printf("Error recording broadcast: %v", err)
		writeError(w, http.StatusInternalServerError, "broadcast failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"broadcast_id": rec.ID,
		"recipients":   rec.TotalRecipients,
	})
}

func (api *Api) SetRoleHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := api.requireAdmin(w, r)
	if !ok {
		return
	}

	target, err := targetUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req struct {
		Role string `json:"role"`
		Days int    `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	role := models.Role(req.Role)
	if role != models.RoleFree && role != models.RolePaid && role != models.RoleAdmin {
		writeError(w, http.StatusBadRequest, "role must be free, paid or admin")
		return
	}
	if role == models.RolePaid && req.Days <= 0 {
		writeError(w, http.StatusBadRequest, "days must be positive for the paid role")
		return
	}

	before, err := api.store.GetUser(target)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("Error loading user %d: %v", target, err)
		writeError(w, http.StatusInternalServerError, "role change failed")
		return
	}

	if err := api.store.SetRole(target, role, req.Days); err != nil {
		log.Printf("Error setting role for user %d: %v", target, err)
		writeError(w, http.StatusInternalServerError, "role change failed")
		return
	}

	// Keep the grant audit log in step with admin promotions
	if role == models.RoleAdmin && before.Role != models.RoleAdmin {
		grant := &models.AdminGrant{ID: uuid.NewString(), UserID: target, GrantedBy: admin}
		if err := api.store.AppendAdminGrant(grant); err != nil {
			log.Printf("Error recording admin grant for user %d: %v", target, err)
		}
	} else if role != models.RoleAdmin && before.Role == models.RoleAdmin {
		if err := api.store.RemoveAdminGrant(target); err != nil {
			log.Printf("Error revoking admin grants for user %d: %v", target, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": target,
		"role":    string(role),
	})
}

func (api *Api) BanHandler(w http.ResponseWriter, r *http.Request) {
	api.setBanned(w, r, true)
}

func (api *Api) UnbanHandler(w http.ResponseWriter, r *http.Request) {
	api.setBanned(w, r, false)
}

func (api *Api) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	admin, ok := api.requireAdmin(w, r)
	if !ok {
		return
	}

	target, err := targetUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if banned && target == admin {
		writeError(w, http.StatusBadRequest, "you cannot ban yourself")
		return
	}

	if err := api.store.SetBanned(target, banned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("Error updating ban flag for user %d: %v", target, err)
		writeError(w, http.StatusInternalServerError, "ban update failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": target,
		"banned":  banned,
	})
}

func (api *Api) GrantsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.requireAdmin(w, r); !ok {
		return
	}

	target, err := targetUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	grants, err := api.store.GetAdminGrants(target)
	if err != nil {
		log.Printf("Error loading grants for user %d: %v", target, err)
		writeError(w, http.StatusInternalServerError, "failed to load grants")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"grants": grants})
}
