package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"brettonwoods/internal/domain"
)

const (
	maxBodyBytes = 64 << 10
	qrCodeSize   = 256
)

// Error codes for malformed requests
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateGameResponse is the response for game creation
type CreateGameResponse struct {
	GameCode   string `json:"gameCode"`
	HostID     string `json:"hostId"`
	InviteLink string `json:"inviteLink"`
}

// SelectCountryRequest is the body of POST /api/games/{code}/join
type SelectCountryRequest struct {
	CountryCode string `json:"countryCode"`
	DisplayName string `json:"displayName"`
}

// VoteRequest is the body of POST /api/games/{code}/vote
type VoteRequest struct {
	OptionID string `json:"optionId"`
	Approve  *bool  `json:"approve"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	Games            int `json:"games"`
	LobbyGames       int `json:"lobbyGames"`
	ActiveGames      int `json:"activeGames"`
	CompleteGames    int `json:"completeGames"`
	TotalPlayers     int `json:"totalPlayers"`
	ConnectedClients int `json:"connectedClients"`
}

// handleCreateGame handles POST /api/games. Callers without an identity get
// a fresh one back as hostId.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	hostID := r.Header.Get(UserIDHeader)
	if hostID == "" {
		hostID = uuid.New().String()
	}

	game, err := s.engine.CreateGame(r.Context(), hostID)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendSuccess(w, &CreateGameResponse{
		GameCode:   game.Code,
		HostID:     hostID,
		InviteLink: s.inviteLink(game.Code),
	})
}

// handleSelectCountry handles POST /api/games/{code}/join
func (s *Server) handleSelectCountry(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req SelectCountryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.CountryCode == "" {
		s.sendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "countryCode is required")
		return
	}

	player, err := s.engine.SelectCountry(r.Context(), r.PathValue("code"), userID, req.CountryCode, req.DisplayName)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, player)
}

// handleSetReady handles POST /api/games/{code}/ready
func (s *Server) handleSetReady(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	player, err := s.engine.SetReady(r.Context(), r.PathValue("code"), userID)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, player)
}

// handleLeave handles POST /api/games/{code}/leave
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if err := s.engine.LeaveGame(r.Context(), r.PathValue("code"), userID); err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, nil)
}

// handleStart handles POST /api/games/{code}/start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	game, err := s.engine.StartGame(r.Context(), r.PathValue("code"), userID)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSnapshot(w, game)
}

// handleVote handles POST /api/games/{code}/vote
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req VoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.OptionID == "" || req.Approve == nil {
		s.sendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "optionId and approve are required")
		return
	}

	vote, err := s.engine.SubmitVote(r.Context(), r.PathValue("code"), userID, req.OptionID, *req.Approve)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, vote)
}

// handleNextRound handles POST /api/games/{code}/next-round
func (s *Server) handleNextRound(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	result, err := s.engine.NextRound(r.Context(), r.PathValue("code"), userID)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, result)
}

// handleReset handles POST /api/games/{code}/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	game, err := s.engine.ResetGame(r.Context(), r.PathValue("code"), userID)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSnapshot(w, game)
}

// handleLobby handles GET /api/games/{code}/lobby
func (s *Server) handleLobby(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Lobby(r.Context(), r.PathValue("code"))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, view)
}

// handleState handles GET /api/games/{code}/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.State(r.Context(), r.PathValue("code"))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, view)
}

// handleResults handles GET /api/games/{code}/results
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Results(r.Context(), r.PathValue("code"))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, view)
}

// handleInviteQR handles GET /api/games/{code}/invite.png
func (s *Server) handleInviteQR(w http.ResponseWriter, r *http.Request) {
	game, err := s.engine.Game(r.Context(), r.PathValue("code"))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	png, err := qrcode.Encode(s.inviteLink(game.Code), qrcode.Medium, qrCodeSize)
	if err != nil {
		s.logger.Error("failed to encode invite qr code", "gameCode", game.Code, "error", err)
		s.sendError(w, http.StatusInternalServerError, domain.CodeInternalError, "Failed to render invite")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}

// handleCountries handles GET /api/countries
func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, s.engine.Catalog().Countries())
}

// handleIssues handles GET /api/issues
func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, s.engine.Catalog().Issues())
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendSuccess(w, &StatsResponse{
		Games:            stats.Games,
		LobbyGames:       stats.Lobby,
		ActiveGames:      stats.Active,
		CompleteGames:    stats.Complete,
		TotalPlayers:     stats.Players,
		ConnectedClients: s.hub.ClientCount(),
	})
}

func (s *Server) inviteLink(code string) string {
	return s.config.BaseURL() + "/join/" + code
}

// requireUser reads the caller identity or answers 403
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		s.sendDomainError(w, domain.ErrUserRequired)
		return "", false
	}
	return userID, true
}

// decode reads a JSON body or answers 400
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		s.sendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return false
	}
	return true
}

func (s *Server) sendSnapshot(w http.ResponseWriter, game *domain.Game) {
	s.sendSuccess(w, domain.BuildSnapshot(game, s.engine.Catalog()))
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendDomainError maps an engine error to its status code
func (s *Server) sendDomainError(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)
	message := err.Error()

	var status int
	switch code {
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeForbidden:
		status = http.StatusForbidden
	case domain.CodeConflict:
		status = http.StatusConflict
	case domain.CodeInvalidState:
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
		message = "Internal server error"
		s.logger.Error("request failed", "error", err)
	}

	s.sendError(w, status, code, message)
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
