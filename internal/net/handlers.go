package net

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/edsabi/AISubBrawl/internal/config"
	"github.com/edsabi/AISubBrawl/internal/sim"
	"github.com/edsabi/AISubBrawl/internal/store"
	"github.com/edsabi/AISubBrawl/internal/telemetry"
)

// Handler exposes the command API, the diagnostics endpoint, and the
// websocket event stream. It validates callers and translates between HTTP
// and the engine's command intake; all gameplay rules live in internal/sim.
type Handler struct {
	world    *sim.World
	store    *store.Store
	hub      *Hub
	counters *telemetry.Counters
	cfg      *config.Config
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler wires the HTTP surface.
func NewHandler(world *sim.World, st *store.Store, hub *Hub, counters *telemetry.Counters, cfg *config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		world:    world,
		store:    st,
		hub:      hub,
		counters: counters,
		cfg:      cfg,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Routes registers every endpoint on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /signup", h.signup)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("GET /rules", h.rules)

	mux.HandleFunc("POST /register_sub", h.auth(h.registerSub))
	mux.HandleFunc("GET /state", h.auth(h.state))
	mux.HandleFunc("POST /control/{sub}", h.auth(h.control))
	mux.HandleFunc("POST /snorkel/{sub}", h.auth(h.snorkel))
	mux.HandleFunc("POST /emergency_blow/{sub}", h.auth(h.emergencyBlow))
	mux.HandleFunc("POST /set_passive_array/{sub}", h.auth(h.setPassiveArray))
	mux.HandleFunc("POST /ping/{sub}", h.auth(h.ping))
	mux.HandleFunc("POST /launch_torpedo/{sub}", h.auth(h.launchTorpedo))
	mux.HandleFunc("POST /set_torp_heading/{torp}", h.auth(h.setTorpHeading))
	mux.HandleFunc("POST /set_torp_depth/{torp}", h.auth(h.setTorpDepth))
	mux.HandleFunc("POST /set_torp_speed/{torp}", h.auth(h.setTorpSpeed))
	mux.HandleFunc("POST /torp_ping_toggle/{torp}", h.auth(h.torpPingToggle))
	mux.HandleFunc("POST /detonate/{torp}", h.auth(h.detonate))

	mux.HandleFunc("GET /diagnostics", h.diagnostics)
	mux.HandleFunc("GET /ws", h.stream)

	return mux
}

// auth resolves the bearer api key (or api_key query parameter) to a user.
func (h *Handler) auth(next func(http.ResponseWriter, *http.Request, uint)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.userFor(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next(w, r, userID)
	}
}

func (h *Handler) userFor(r *http.Request) (uint, bool) {
	key := ""
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		key = strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if key == "" {
		key = r.URL.Query().Get("api_key")
	}
	if key == "" {
		return 0, false
	}
	return h.store.UserForKey(key)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}
	key, err := h.store.CreateUser(creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			writeError(w, http.StatusBadRequest, "username taken")
			return
		}
		h.log.Error().Err(err).Msg("signup failed")
		writeError(w, http.StatusInternalServerError, "signup failed")
		return
	}
	writeJSON(w, map[string]any{"ok": true, "api_key": key})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	key, err := h.store.Authenticate(creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.log.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, map[string]any{"ok": true, "api_key": key})
}

func (h *Handler) rules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.cfg)
}

func (h *Handler) registerSub(w http.ResponseWriter, _ *http.Request, userID uint) {
	sub := h.world.RegisterSubmarine(userID)
	writeJSON(w, map[string]any{
		"ok":     true,
		"sub_id": sub.ID,
		"spawn":  []float64{sub.X, sub.Y, sub.Depth},
	})
}

func (h *Handler) state(w http.ResponseWriter, _ *http.Request, userID uint) {
	subs, torps := h.world.SnapshotFor(userID)
	writeJSON(w, map[string]any{"ok": true, "subs": subs, "torpedoes": torps})
}

func (h *Handler) control(w http.ResponseWriter, r *http.Request, userID uint) {
	var body struct {
		Throttle    *float64        `json:"throttle"`
		RudderDeg   *float64        `json:"rudder_deg"`
		Planes      *float64        `json:"planes"`
		TargetDepth json.RawMessage `json:"target_depth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	in := sim.ControlInput{
		Throttle:  body.Throttle,
		RudderDeg: body.RudderDeg,
		Planes:    body.Planes,
	}
	// target_depth distinguishes absent (leave), null (clear), number (set).
	if len(body.TargetDepth) > 0 {
		if string(body.TargetDepth) == "null" {
			var cleared *float64
			in.TargetDepth = &cleared
		} else {
			var depth float64
			if err := json.Unmarshal(body.TargetDepth, &depth); err != nil {
				writeError(w, http.StatusBadRequest, "target_depth must be a number or null")
				return
			}
			ptr := &depth
			in.TargetDepth = &ptr
		}
	}

	if err := h.world.SetControl(userID, r.PathValue("sub"), in); err != nil {
		writeSimError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (h *Handler) snorkel(w http.ResponseWriter, r *http.Request, userID uint) {
	var body struct {
		On *bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	on := true
	if body.On != nil {
		on = *body.On
	}
	if err := h.world.SetSnorkel(userID, r.PathValue("sub"), on); err != nil {
		writeSimError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "is_snorkeling": on})
}

func (h *Handler) emergencyBlow(w http.ResponseWriter, r *http.Request, userID uint) {
	if err := h.world.TriggerBlow(userID, r.PathValue("sub")); err != nil {
		writeSimError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (h *Handler) setPassiveArray(w http.ResponseWriter, r *http.Request, userID uint) {
	var body struct {
		DirDeg float64 `json:"dir_deg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if err := h.world.SetPassiveArray(userID, r.PathValue("sub"), degToRad(body.DirDeg)); err != nil {
		writeSimError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request, userID uint) {
	var body struct {
		BeamwidthDeg     float64 `json:"beamwidth_deg"`
		MaxRange         float64 `json:"max_range"`
		CenterBearingDeg float64 `json:"center_bearing_deg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if body.BeamwidthDeg == 0 {
		body.BeamwidthDeg = 20
	}
	if body.MaxRange == 0 {
		body.MaxRange = h.cfg.Sonar.Active.MaxRange
	}
	cost, err := h.world.Ping(userID, r.PathValue("sub"), sim.PingRequest{
		BeamwidthDeg:     body.BeamwidthDeg,
		MaxRange:         body.MaxRange,
		CenterBearingRel: degToRad(body.CenterBearingDeg),
	})
	if err != nil {
		writeSimError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "battery_cost": cost})
}

func (h *Handler) launchTorpedo(w http.ResponseWriter, r *http.Request, userID uint) {
	var body struct {
		WireLength float64 `json:"wire_length"`
		Tube       int     `json:"tube"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	torp, err := h.world.LaunchTorpedo(userID, r.PathValue("sub"), sim.LaunchRequest{
		WireLength: body.WireLength,
		Tube:       body.Tube,
	})
	if err != nil {
		writeSimError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"ok":          true,
		"torpedo_id":  torp.ID,
		"wire_length": torp.WireLength,
		"spawn":       map[string]float64{"x": torp.X, "y": torp.Y, "depth": torp.Depth},
	})
}

func (h *Handler) setTorpHeading(w http.ResponseWriter, r *http.Request, userID uint) {
	var body struct {
		HeadingDeg *float64 `json:"heading_deg"`
		TurnDeg    *float64 `json:"turn_deg"`
		Dt         float64  `json:"dt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	in := sim.TorpedoHeadingInput{DtHint: body.Dt}
	if body.HeadingDeg != nil {
		hdg := degToRad(*body.HeadingDeg)
		in.Heading = &hdg
	}
	if body.TurnDeg != nil {
		turn := degToRad(*body.TurnDeg)
		in.Turn = &turn
	}
	heading, err := h.world.SetTorpedoHeading(userID, r.PathValue("torp"), in)
	if err != nil {
		writeSimError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "heading": heading})
}

func (h *Handler) setTorpDepth(w http.ResponseWriter, r *http.Request, userID uint) {
	var body struct {
		Depth float64 `json:"depth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if err := h.world.SetTorpedoDepth(userID, r.PathValue("torp"), body.Depth); err != nil {
		writeSimError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "target_depth": body.Depth})
}

func (h *Handler) setTorpSpeed(w http.ResponseWriter, r *http.Request, userID uint) {
	var body struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if err := h.world.SetTorpedoSpeed(userID, r.PathValue("torp"), body.Speed); err != nil {
		writeSimError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "target_speed": body.Speed})
}

func (h *Handler) torpPingToggle(w http.ResponseWriter, r *http.Request, userID uint) {
	on, err := h.world.ToggleTorpedoPing(userID, r.PathValue("torp"))
	if err != nil {
		writeSimError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "auto_ping": on})
}

func (h *Handler) detonate(w http.ResponseWriter, r *http.Request, userID uint) {
	affected, err := h.world.Detonate(userID, r.PathValue("torp"))
	if err != nil {
		writeSimError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "affected": affected})
}

func (h *Handler) diagnostics(w http.ResponseWriter, _ *http.Request) {
	subs, torps := h.world.EntityCounts()
	writeJSON(w, map[string]any{
		"ok":        true,
		"tick":      h.world.Tick(),
		"time":      h.world.Now(),
		"subs":      subs,
		"torpedoes": torps,
		"loop":      h.counters.Snapshot(),
	})
}

// stream upgrades the connection and registers it for event delivery. The
// read loop exists only to notice the peer going away.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Uint("user", userID).Msg("websocket upgrade failed")
		return
	}
	h.hub.Subscribe(userID, conn)

	go func() {
		defer h.hub.Disconnect(userID)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg})
}

// writeSimError maps the engine's error taxonomy onto HTTP statuses.
func writeSimError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if sim.KindOf(err) == sim.KindNotFound {
		status = http.StatusNotFound
	}
	writeError(w, status, err.Error())
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180 }
