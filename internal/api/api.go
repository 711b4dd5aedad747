// Package api implements the JSON endpoints behind the settings page.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/yok-tottii/EzCall/internal/audio"
	"github.com/yok-tottii/EzCall/internal/call"
	"github.com/yok-tottii/EzCall/internal/clipboard"
	"github.com/yok-tottii/EzCall/internal/config"
	"github.com/yok-tottii/EzCall/internal/history"
	"github.com/yok-tottii/EzCall/internal/hotkey"
	"github.com/yok-tottii/EzCall/internal/i18n"
	"github.com/yok-tottii/EzCall/internal/logger"
	"github.com/yok-tottii/EzCall/internal/mictest"
	"github.com/yok-tottii/EzCall/internal/permissions"
	"github.com/yok-tottii/EzCall/internal/route"
	"github.com/yok-tottii/EzCall/internal/wizard"
)

const (
	callTimeout       = 10 * time.Second
	defaultMicSeconds = 3
	maxHistoryLimit   = 200
)

// Controller is the part of the call controller the API drives
type Controller interface {
	Status() call.Status
	Call(ctx context.Context) error
	Hangup(ctx context.Context) error
	ToggleMute() bool
	ToggleSpeaker() bool
	SelectOutput(device route.AudioDevice)
	SetDefaultOutput(device route.AudioDevice)
}

// HistoryReader lists past calls
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// Deps are the collaborators of a Handler. Everything but Config is optional;
// endpoints whose dependency is missing answer 503.
type Deps struct {
	Config *config.Config
	// ConfigPath is where settings are saved; empty means config.GetConfigPath()
	ConfigPath string
	Wizard     *wizard.SetupWizard
	Controller Controller
	// Do runs f on the controller goroutine and waits for it
	Do          func(f func()) error
	Devices     func() ([]audio.Device, error)
	Permissions func() map[permissions.Permission]permissions.PermissionStatus
	History     HistoryReader
	MicTest     func(ctx context.Context, d time.Duration) (mictest.Result, error)
	Metrics     http.Handler
	Translator  *i18n.Translator
	// OnHotkeysChanged reloads hotkeys in the running application
	OnHotkeysChanged func() error
	// OnSettingsChanged is called after settings are saved
	OnSettingsChanged func(cfg *config.Config)
	Logger            *logger.Logger
}

// Handler manages API endpoints
type Handler struct {
	deps Deps
	log  *logger.Logger
}

// New creates a new API handler
func New(deps Deps) *Handler {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	if deps.ConfigPath == "" {
		deps.ConfigPath = config.GetConfigPath()
	}
	if deps.Do == nil {
		deps.Do = func(f func()) error { f(); return nil }
	}
	return &Handler{deps: deps, log: log.Component("api")}
}

// RegisterRoutes registers all API routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/settings", h.handleSettings)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/call", h.handleCall)
	mux.HandleFunc("/api/hangup", h.handleHangup)
	mux.HandleFunc("/api/mute", h.handleMute)
	mux.HandleFunc("/api/speaker", h.handleSpeaker)
	mux.HandleFunc("/api/route", h.handleRoute)
	mux.HandleFunc("/api/route/select", h.handleRouteSelect)
	mux.HandleFunc("/api/route/default", h.handleRouteDefault)
	mux.HandleFunc("/api/invite", h.handleInvite)
	mux.HandleFunc("/api/devices", h.handleDevices)
	mux.HandleFunc("/api/permissions", h.handlePermissions)
	mux.HandleFunc("/api/history", h.handleHistory)
	mux.HandleFunc("/api/test/mic", h.handleMicTest)
	mux.HandleFunc("/api/hotkey/validate", h.handleHotkeyValidate)
	mux.HandleFunc("/api/hotkey/register", h.handleHotkeyRegister)
	mux.HandleFunc("/api/setup", h.handleSetup)
	mux.HandleFunc("/api/setup/step", h.handleSetupStep)
	mux.HandleFunc("/api/i18n", h.handleTranslations)
	if h.deps.Metrics != nil {
		mux.Handle("/metrics", h.deps.Metrics)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func unavailable(w http.ResponseWriter, what string) {
	http.Error(w, what+" is not available", http.StatusServiceUnavailable)
}

// handleSettings handles GET and PUT /api/settings
func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.deps.Config.Clone())
	case http.MethodPut:
		h.putSettings(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// putSettings validates the updates on a copy first, so a bad field leaves
// the live configuration untouched
func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	candidate := h.deps.Config.Clone()
	if err := candidate.Update(updates); err != nil {
		http.Error(w, fmt.Sprintf("Failed to update config: %v", err), http.StatusBadRequest)
		return
	}
	if err := candidate.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("Invalid config: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.deps.Config.Update(updates); err != nil {
		http.Error(w, fmt.Sprintf("Failed to update config: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.deps.Config.Save(h.deps.ConfigPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to save config: %v", err), http.StatusInternalServerError)
		return
	}

	_, urlChanged := updates["signaling_url"]
	_, roomChanged := updates["room"]
	if urlChanged || roomChanged {
		h.markStep(wizard.StepSignaling)
	}

	if h.deps.OnSettingsChanged != nil {
		h.deps.OnSettingsChanged(h.deps.Config)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
	})
}

// handleTranslations handles GET /api/i18n
func (h *Handler) handleTranslations(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.deps.Translator == nil {
		unavailable(w, "translations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"language": h.deps.Translator.GetLanguage(),
		"strings":  h.deps.Translator.GetAllTranslations(),
	})
}

func (h *Handler) markStep(step wizard.Step) {
	if h.deps.Wizard == nil {
		return
	}
	if _, err := h.deps.Wizard.MarkStep(step); err != nil {
		// 設定の保存は成功しているので処理を継続
		h.log.Warn("failed to mark setup step %s: %v", step, err)
	}
}

// onController runs f on the controller goroutine
func (h *Handler) onController(w http.ResponseWriter, f func(c Controller)) bool {
	if h.deps.Controller == nil {
		unavailable(w, "call controller")
		return false
	}
	if err := h.deps.Do(func() { f(h.deps.Controller) }); err != nil {
		http.Error(w, fmt.Sprintf("Call controller stopped: %v", err), http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *Handler) status(w http.ResponseWriter) (call.Status, bool) {
	var status call.Status
	ok := h.onController(w, func(c Controller) { status = c.Status() })
	return status, ok
}

// handleStatus handles GET /api/status
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if status, ok := h.status(w); ok {
		writeJSON(w, http.StatusOK, status)
	}
}

func callErrorStatus(err error) int {
	switch {
	case errors.Is(err, call.ErrNotReady), errors.Is(err, call.ErrBusy), errors.Is(err, call.ErrNoCall):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) callAction(w http.ResponseWriter, r *http.Request, action func(c Controller, ctx context.Context) error) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()

	var err error
	if !h.onController(w, func(c Controller) { err = action(c, ctx) }) {
		return
	}
	if err != nil {
		http.Error(w, err.Error(), callErrorStatus(err))
		return
	}

	if status, ok := h.status(w); ok {
		writeJSON(w, http.StatusOK, status)
	}
}

// handleCall handles POST /api/call
func (h *Handler) handleCall(w http.ResponseWriter, r *http.Request) {
	h.callAction(w, r, func(c Controller, ctx context.Context) error { return c.Call(ctx) })
}

// handleHangup handles POST /api/hangup
func (h *Handler) handleHangup(w http.ResponseWriter, r *http.Request) {
	h.callAction(w, r, func(c Controller, ctx context.Context) error { return c.Hangup(ctx) })
}

// handleMute handles POST /api/mute
func (h *Handler) handleMute(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var muted bool
	if h.onController(w, func(c Controller) { muted = c.ToggleMute() }) {
		writeJSON(w, http.StatusOK, map[string]bool{"muted": muted})
	}
}

// handleSpeaker handles POST /api/speaker
func (h *Handler) handleSpeaker(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var on bool
	if h.onController(w, func(c Controller) { on = c.ToggleSpeaker() }) {
		writeJSON(w, http.StatusOK, map[string]bool{"speaker": on})
	}
}

// handleRoute handles GET /api/route
func (h *Handler) handleRoute(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if status, ok := h.status(w); ok {
		writeJSON(w, http.StatusOK, status.Route)
	}
}

type deviceRequest struct {
	Device route.AudioDevice `json:"device"`
}

func decodeDevice(w http.ResponseWriter, r *http.Request) (route.AudioDevice, bool) {
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return route.None, false
	}
	return req.Device, true
}

// handleRouteSelect handles POST /api/route/select. None clears the user's
// selection.
func (h *Handler) handleRouteSelect(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	device, ok := decodeDevice(w, r)
	if !ok {
		return
	}
	var snapshot route.Snapshot
	if h.onController(w, func(c Controller) {
		c.SelectOutput(device)
		snapshot = c.Status().Route
	}) {
		writeJSON(w, http.StatusOK, snapshot)
	}
}

// handleRouteDefault handles POST /api/route/default
func (h *Handler) handleRouteDefault(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	device, ok := decodeDevice(w, r)
	if !ok {
		return
	}
	if device != route.SpeakerPhone && device != route.Earpiece {
		http.Error(w, "Default output must be speaker_phone or earpiece", http.StatusBadRequest)
		return
	}
	var snapshot route.Snapshot
	if h.onController(w, func(c Controller) {
		c.SetDefaultOutput(device)
		snapshot = c.Status().Route
	}) {
		writeJSON(w, http.StatusOK, snapshot)
	}
}

// handleInvite handles GET /api/invite
func (h *Handler) handleInvite(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	cfg := h.deps.Config.Clone()
	inviteURL, err := cfg.InviteURL()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"room": cfg.Room,
		"url":  inviteURL,
		"text": clipboard.FormatInvite(cfg.Room, inviteURL),
	})
}

// handleDevices handles GET /api/devices
func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.deps.Devices == nil {
		unavailable(w, "audio")
		return
	}
	devices, err := h.deps.Devices()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list audio devices: %v", err), http.StatusInternalServerError)
		return
	}
	if devices == nil {
		devices = []audio.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices":     devices,
		"has_headset": audio.HasHeadset(devices),
	})
}

// handlePermissions handles GET /api/permissions
func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.deps.Permissions == nil {
		unavailable(w, "permissions")
		return
	}
	status := h.deps.Permissions()
	granted := true
	for _, s := range status {
		if s != permissions.PermissionAuthorized {
			granted = false
		}
	}
	if granted {
		h.markStep(wizard.StepPermissions)
	}
	writeJSON(w, http.StatusOK, status)
}

// handleHistory handles GET /api/history?limit=N
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.deps.History == nil {
		unavailable(w, "history")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.deps.History.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read history: %v", err), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"calls": records})
}

// MicTestResponse is the body of POST /api/test/mic
type MicTestResponse struct {
	mictest.Result
	Silent bool `json:"silent"`
	// PeakDBFS is null for digital silence
	PeakDBFS *float64 `json:"peak_dbfs"`
}

// handleMicTest handles POST /api/test/mic
func (h *Handler) handleMicTest(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if h.deps.MicTest == nil {
		unavailable(w, "microphone test")
		return
	}

	req := struct {
		Seconds int `json:"seconds"`
	}{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.Seconds <= 0 {
		req.Seconds = defaultMicSeconds
	}

	result, err := h.deps.MicTest(r.Context(), time.Duration(req.Seconds)*time.Second)
	switch {
	case errors.Is(err, mictest.ErrBusy), errors.Is(err, mictest.ErrMuted):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, fmt.Sprintf("Microphone test failed: %v", err), http.StatusInternalServerError)
		return
	}

	resp := MicTestResponse{Result: result, Silent: result.Silent()}
	if db := result.PeakDBFS(); !math.IsInf(db, 0) {
		resp.PeakDBFS = &db
	}
	if !resp.Silent {
		h.markStep(wizard.StepMicTest)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHotkeyValidate handles POST /api/hotkey/validate
func (h *Handler) handleHotkeyValidate(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var request config.HotkeyConfig
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	mods, key, err := hotkey.Parse(request)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conflictNames := []string{}
	for _, c := range hotkey.CheckConflicts(mods, key) {
		conflictNames = append(conflictNames, c.Name)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"display":   hotkey.FormatHotkey(mods, key),
		"conflicts": conflictNames,
	})
}

// HotkeyRegisterRequest is the body of POST /api/hotkey/register
type HotkeyRegisterRequest struct {
	Action string              `json:"action"` // "mute" or "speaker"
	Hotkey config.HotkeyConfig `json:"hotkey"`
}

// handleHotkeyRegister handles POST /api/hotkey/register
func (h *Handler) handleHotkeyRegister(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req HotkeyRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.log.Debug("received %s hotkey: Ctrl=%v, Shift=%v, Alt=%v, Cmd=%v, Key=%q",
		req.Action, req.Hotkey.Ctrl, req.Hotkey.Shift, req.Hotkey.Alt, req.Hotkey.Cmd, req.Hotkey.Key)

	if req.Hotkey.Key == "" {
		http.Error(w, "Key cannot be empty", http.StatusBadRequest)
		return
	}

	// Check if at least one modifier is set (recommended for safety)
	if !req.Hotkey.HasModifier() {
		http.Error(w, "At least one modifier key (Ctrl/Shift/Alt/Cmd) is recommended", http.StatusBadRequest)
		return
	}

	candidate := h.deps.Config.Clone()
	if err := candidate.SetHotkey(req.Action, req.Hotkey); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := hotkey.Bindings(candidate.Hotkeys); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.deps.Config.SetHotkey(req.Action, req.Hotkey); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.deps.Config.Save(h.deps.ConfigPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to save config: %v", err), http.StatusInternalServerError)
		return
	}

	// Reload hotkeys in the running application
	if h.deps.OnHotkeysChanged != nil {
		if err := h.deps.OnHotkeysChanged(); err != nil {
			h.log.Warn("failed to reload hotkeys: %v", err)
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "partial",
				"message": fmt.Sprintf("Hotkey saved but reload failed: %v. Please restart the application.", err),
			})
			return
		}
	}

	h.markStep(wizard.StepHotkeys)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Hotkey registered and applied successfully",
	})
}

// handleSetup handles GET /api/setup
func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.deps.Wizard == nil {
		unavailable(w, "setup")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"show":      h.deps.Wizard.ShouldShowWizard(),
		"completed": h.deps.Wizard.IsSetupCompleted(),
		"progress":  h.deps.Wizard.GetProgress(),
	})
}

// handleSetupStep handles POST /api/setup/step
func (h *Handler) handleSetupStep(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if h.deps.Wizard == nil {
		unavailable(w, "setup")
		return
	}
	var req struct {
		Step string `json:"step"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !wizard.ValidStep(req.Step) {
		http.Error(w, "Invalid setup step", http.StatusBadRequest)
		return
	}
	progress, err := h.deps.Wizard.MarkStep(wizard.Step(req.Step))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}
