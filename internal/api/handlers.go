package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/savegram-io/savegram/internal/batch"
	"github.com/savegram-io/savegram/internal/fetch"
	"github.com/savegram-io/savegram/internal/gate"
	"github.com/savegram-io/savegram/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": msg})
}

// writeDenial maps a gate denial to an HTTP status
func writeDenial(w http.ResponseWriter, decision gate.Decision) {
	status := http.StatusForbidden
	if decision.Reason == gate.DenyQuotaExceeded {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, map[string]interface{}{
		"error":  decision.Message,
		"reason": string(decision.Reason),
	})
}

// writeFetchError maps the retrieval error taxonomy to HTTP statuses
func writeFetchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fetch.ErrAuthExpired):
		writeError(w, http.StatusUnauthorized, "Your session has expired. Please log in again.")
	case errors.Is(err, fetch.ErrNotAMember):
		writeError(w, http.StatusForbidden, "You must be a member of that channel to download from it.")
	case errors.Is(err, fetch.ErrContentAbsent):
		writeError(w, http.StatusNotFound, "That post does not exist or has been deleted.")
	case errors.Is(err, fetch.ErrNoDownloadableContent):
		writeError(w, http.StatusUnprocessableEntity, "That post has no downloadable content.")
	case errors.Is(err, fetch.ErrSizeExceeded):
		writeError(w, http.StatusRequestEntityTooLarge, "That file exceeds your size limit. Upgrade to premium for larger files.")
	case errors.Is(err, fetch.ErrQuotaExceeded):
		writeError(w, http.StatusTooManyRequests, "Daily download limit reached. Upgrade to premium for unlimited downloads.")
	case fetch.IsCanceled(err):
		writeError(w, http.StatusConflict, "Download canceled.")
	default:
		log.Printf("Error handling download: %v", err)
		writeError(w, http.StatusInternalServerError, "Download failed, please try again later.")
	}
}

func (api *Api) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     int64  `json:"user_id"`
		Username   string `json:"username"`
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		SessionRef string `json:"session_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == 0 || req.SessionRef == "" {
		writeError(w, http.StatusBadRequest, "user_id and session_ref are required")
		return
	}

	hint := models.ProfileHint{Username: req.Username, FirstName: req.FirstName, LastName: req.LastName}
	decision, err := api.gate.Evaluate(req.UserID, hint, gate.Any)
	if err != nil {
		log.Printf("Error evaluating login for user %d: %v", req.UserID, err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !decision.Allowed {
		writeDenial(w, decision)
		return
	}

	if err := api.store.SetSessionRef(req.UserID, &req.SessionRef); err != nil {
		log.Printf("Error storing session for user %d: %v", req.UserID, err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := api.tokens.GenerateToken(req.UserID, 24*time.Hour)
	if err != nil {
		log.Printf("Error generating token for user %d: %v", req.UserID, err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token})
}

func (api *Api) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := api.store.SetSessionRef(userID, nil); err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Printf("Error clearing session for user %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "logged_out"})
}

func (api *Api) MyInfoHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := api.store.GetUser(userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("Error loading user %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	now := time.Now()
	usage, err := api.ledger.GetUsage(userID, now.Format(models.DayFormat))
	if err != nil {
		log.Printf("Error loading usage for user %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":           user,
		"effective_role": string(user.EffectiveRole(now)),
		"today_usage":    usage,
		"daily_limit":    api.Config.Quota.DailyLimit,
		"has_session":    user.HasSession(),
	})
}

func (api *Api) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	type taskInfo struct {
		ID        string    `json:"id"`
		StartedAt time.Time `json:"started_at"`
	}
	infos := []taskInfo{}
	for _, t := range api.registry.TasksFor(userID) {
		infos = append(infos, taskInfo{ID: t.ID.String(), StartedAt: t.StartedAt})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": infos})
}

func (api *Api) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ref, err := fetch.ParsePostLink(req.Link)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, user, err := api.admit(userID, gate.QuotaGated)
	if err != nil {
		log.Printf("Error admitting user %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "download failed")
		return
	}
	if !decision.Allowed {
		writeDenial(w, decision)
		return
	}

	result, err := api.runner.DownloadOne(r.Context(), user, ref)
	if err != nil {
		writeFetchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"item":   result.Descriptor,
		"stored": result.Stored,
		"quota":  decision.Info,
	})
}

func (api *Api) BatchDownloadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		StartLink string `json:"start_link"`
		EndLink   string `json:"end_link"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	start, err := fetch.ParsePostLink(req.StartLink)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := fetch.ParsePostLink(req.EndLink)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rng, err := batch.ValidateRange(start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Range downloads are a premium feature
	decision, user, err := api.admit(userID, gate.PaidOrAdmin)
	if err != nil {
		log.Printf("Error admitting user %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "batch failed")
		return
	}
	if !decision.Allowed {
		writeDenial(w, decision)
		return
	}

	summary, err := api.runner.Run(r.Context(), user, rng)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "completed",
			"range":   rng,
			"summary": summary,
		})
	case errors.Is(err, context.Canceled):
		// Partial counts survive the cancel
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "canceled",
			"range":   rng,
			"summary": summary,
		})
	default:
		writeFetchError(w, err)
	}
}

// admit runs the gate and loads the user row the runner needs
func (api *Api) admit(userID int64, capability gate.Capability) (gate.Decision, *models.User, error) {
	decision, err := api.gate.Evaluate(userID, models.ProfileHint{}, capability)
	if err != nil || !decision.Allowed {
		return decision, nil, err
	}
	user, err := api.store.GetUser(userID)
	if err != nil {
		return gate.Decision{}, nil, err
	}
	return decision, user, nil
}
