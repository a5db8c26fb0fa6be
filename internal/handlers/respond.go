package handlers

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// writeNoData reports a sensor without calibrated bands or readings
func writeNoData(w http.ResponseWriter, sensor string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"status": "no data",
		"sensor": sensor,
	})
}
