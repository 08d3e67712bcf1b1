package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	MatchThreshold  float64              `json:"match_threshold"`
	CooldownSeconds float64              `json:"cooldown_seconds"`
	Timezone        string               `json:"timezone"`
	AfterCheckout   string               `json:"after_checkout"`
	Payroll         config.PayrollConfig `json:"payroll"`
	Index           IndexInfo            `json:"index"`
}

// IndexInfo describes the in-memory identity index
type IndexInfo struct {
	Enabled  bool `json:"enabled"`
	Count    int  `json:"count"`
	Database bool `json:"database"`
}

// Get returns the public engine settings
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		MatchThreshold:  h.config.Attendance.MatchThreshold,
		CooldownSeconds: h.config.Attendance.Cooldown.Seconds(),
		Timezone:        h.config.Attendance.Timezone,
		AfterCheckout:   h.config.Attendance.AfterCheckout,
		Payroll:         h.config.Payroll,
		Index:           indexInfo(),
	}
	if response.Timezone == "" {
		response.Timezone = "Local"
	}

	respondJSON(w, http.StatusOK, response)
}

func indexInfo() IndexInfo {
	info := IndexInfo{Database: database.IsInitialized()}
	if rebuilder := database.GetIndexRebuilder(); rebuilder != nil {
		info.Enabled = rebuilder.IsIndexEnabled()
		info.Count = rebuilder.IndexCount()
	}
	return info
}
