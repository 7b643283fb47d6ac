package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"papertrader/src/auth"
	"papertrader/src/model"
)

type settingsStore interface {
	GetSettings(ctx context.Context, userID uint) (*model.UserSettings, error)
	UpdateSettings(ctx context.Context, settings *model.UserSettings) error
}

type settingsBody struct {
	BrokerageSimulation  *bool `json:"brokerage_simulation,omitempty"`
	DarkMode             *bool `json:"dark_mode,omitempty"`
	NotificationsEnabled *bool `json:"notifications_enabled,omitempty"`
}

// GetSettingsHandler returns the user's simulation settings.
func GetSettingsHandler(svc settingsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		settings, err := svc.GetSettings(r.Context(), user.ID)
		if err != nil {
			writeTradeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, settings)
	}
}

// UpdateSettingsHandler applies a partial settings update; omitted fields
// keep their current values.
func UpdateSettingsHandler(svc settingsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var body settingsBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		settings, err := svc.GetSettings(r.Context(), user.ID)
		if err != nil {
			writeTradeError(w, err)
			return
		}

		if body.BrokerageSimulation != nil {
			settings.BrokerageSimulation = *body.BrokerageSimulation
		}
		if body.DarkMode != nil {
			settings.DarkMode = *body.DarkMode
		}
		if body.NotificationsEnabled != nil {
			settings.NotificationsEnabled = *body.NotificationsEnabled
		}

		if err := svc.UpdateSettings(r.Context(), settings); err != nil {
			writeTradeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, settings)
	}
}
