package server

import (
	"encoding/json"
	"net/http"
	"time"
)

type ProcessResponse struct {
	Success  bool   `json:"success"`
	VideoURL string `json:"videoUrl,omitempty"`
	RunID    string `json:"runId,omitempty"`
	Error    string `json:"error,omitempty"`
}

type VideoInfoResponse struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	URL      string    `json:"url"`
	Expires  time.Time `json:"expires"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	UptimeS int64  `json:"uptime_s"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

func videoURL(name string) string {
	return "/videos/" + name
}
