package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/contestd/internal/export"
	"github.com/jjudge-oj/contestd/internal/services"
	"github.com/jjudge-oj/contestd/types"
)

const (
	viewMasked = "masked"
	viewFull   = "full"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ContestHandler provides HTTP handlers for contests, their ranklists and
// their file sets.
type ContestHandler struct {
	contests   *services.ContestService
	files      *services.FileSetService
	stagingDir string
	now        func() time.Time
}

// NewContestHandler constructs a handler. Uploads are staged in stagingDir
// before they are moved into their file set.
func NewContestHandler(contests *services.ContestService, files *services.FileSetService, stagingDir string) *ContestHandler {
	return &ContestHandler{
		contests:   contests,
		files:      files,
		stagingDir: stagingDir,
		now:        time.Now,
	}
}

// ContestRouter registers contest routes on the given router.
func ContestRouter(r chi.Router, h *ContestHandler, jwtSecret string) {
	auth := RequireAuth(jwtSecret)
	guest := OptionalAuth(jwtSecret)

	r.With(auth, h.requireAdmin).Post("/", h.CreateContest)
	r.Route("/{contestID}", func(r chi.Router) {
		r.With(guest).Get("/", h.GetContest)
		r.Get("/visibility", h.GetVisibility)
		r.With(auth, h.requireSupervisor).Put("/problems", h.SetProblems)
		r.With(auth, h.requireSupervisor).Post("/judge-states", h.SubmitJudgeState)
		r.With(guest).Get("/ranklist", h.GetRanklist)
		r.With(guest).Get("/ranklist.xlsx", h.GetRanklistXLSX)

		r.Route("/files/{kind}", func(r chi.Router) {
			r.With(guest).Get("/", h.ListFiles)
			r.With(guest).Post("/archive", h.BuildArchive)
			r.With(guest).Get("/archive", h.DownloadArchive)
			r.With(auth, h.requireSupervisor).Put("/{filename}", h.UploadFile)
			r.With(auth, h.requireSupervisor).Delete("/{filename}", h.DeleteFile)
		})
	})
}

// CreateContestRequest is the payload of POST /contests.
type CreateContestRequest struct {
	types.Contest
	Ranking types.RankingParams `json:"ranking"`
}

// SetProblemsRequest is the payload of PUT /contests/{id}/problems.
type SetProblemsRequest struct {
	Problems []int `json:"problems"`
}

// RanklistResponse is an ordered ranklist view.
type RanklistResponse struct {
	ContestID int              `json:"contest_id"`
	View      string           `json:"view"`
	Rows      []types.Standing `json:"rows"`
}

func (h *ContestHandler) CreateContest(w http.ResponseWriter, r *http.Request) {
	var req CreateContestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.HolderID == 0 {
		req.HolderID, _ = userIDFromContext(r.Context())
	}
	req.ID = 0

	created, err := h.contests.Create(r.Context(), req.Contest, req.Ranking)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ContestHandler) GetContest(w http.ResponseWriter, r *http.Request) {
	id, err := parseContestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	contest, err := h.contests.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !contest.IsEnded(h.now().Unix()) {
		supervisor, err := h.isSupervisor(r, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !supervisor {
			contest.AfterInformation = ""
		}
	}
	writeJSON(w, http.StatusOK, contest)
}

func (h *ContestHandler) GetVisibility(w http.ResponseWriter, r *http.Request) {
	id, err := parseContestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := h.contests.Visibility(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *ContestHandler) SetProblems(w http.ResponseWriter, r *http.Request) {
	id, err := parseContestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req SetProblemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.contests.SetProblems(r.Context(), id, req.Problems)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ContestHandler) SubmitJudgeState(w http.ResponseWriter, r *http.Request) {
	id, err := parseContestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var js types.JudgeState
	if err := json.NewDecoder(r.Body).Decode(&js); err != nil {
		writeError(w, http.StatusBadRequest, "invalid judge state")
		return
	}

	if err := h.contests.Submit(r.Context(), id, js); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContestHandler) GetRanklist(w http.ResponseWriter, r *http.Request) {
	contest, view, rows, ok := h.ranklist(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, RanklistResponse{ContestID: contest.ID, View: view, Rows: rows})
}

func (h *ContestHandler) GetRanklistXLSX(w http.ResponseWriter, r *http.Request) {
	contest, view, rows, ok := h.ranklist(w, r)
	if !ok {
		return
	}

	users := make(map[int]types.User, len(rows))
	for _, row := range rows {
		user, err := h.contests.User(r.Context(), row.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		users[row.UserID] = user
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="contest-%d-%s.xlsx"`, contest.ID, view))
	if err := export.StandingsXLSX(w, contest, rows, users); err != nil {
		writeServiceError(w, r, err)
	}
}

// ranklist resolves the requested view. The masked view is public; the
// full view is for supervisors only.
func (h *ContestHandler) ranklist(w http.ResponseWriter, r *http.Request) (types.Contest, string, []types.Standing, bool) {
	id, err := parseContestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return types.Contest{}, "", nil, false
	}

	view := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("view")))
	switch view {
	case "", viewMasked:
		view = viewMasked
	case viewFull:
	default:
		writeError(w, http.StatusBadRequest, "invalid view")
		return types.Contest{}, "", nil, false
	}

	contest, err := h.contests.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return types.Contest{}, "", nil, false
	}
	if view == viewFull {
		supervisor, err := h.isSupervisor(r, id)
		if err != nil {
			writeServiceError(w, r, err)
			return types.Contest{}, "", nil, false
		}
		if !supervisor {
			writeError(w, http.StatusForbidden, "full ranklist requires supervisor access")
			return types.Contest{}, "", nil, false
		}
	}

	rows, err := h.contests.Standings(r.Context(), id, view == viewMasked)
	if err != nil {
		writeServiceError(w, r, err)
		return types.Contest{}, "", nil, false
	}
	return contest, view, rows, true
}

// isSupervisor reports whether the authenticated user, if any, supervises
// the contest.
func (h *ContestHandler) isSupervisor(r *http.Request, contestID int) (bool, error) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		return false, nil
	}
	return h.contests.IsSupervisor(r.Context(), contestID, userID)
}

func (h *ContestHandler) requireSupervisor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := parseContestID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := userIDFromContext(r.Context()); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ok, err := h.isSupervisor(r, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, "supervisor access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *ContestHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := h.contests.User(r.Context(), userID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if user.ID == 0 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
