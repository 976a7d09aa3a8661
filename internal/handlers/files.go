package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jjudge-oj/contestd/types"
)

const (
	maxMultipartMemory = 32 << 20
	maxUploadBytes     = 1 << 30
	formFieldFile      = "file"
	formFieldBypass    = "bypass_quota"
)

func (h *ContestHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	id, kind, ok := h.fileSetAccess(w, r)
	if !ok {
		return
	}
	listing, err := h.files.List(r.Context(), id, kind)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *ContestHandler) BuildArchive(w http.ResponseWriter, r *http.Request) {
	id, kind, ok := h.fileSetAccess(w, r)
	if !ok {
		return
	}
	info, err := h.files.EnsureArchive(r.Context(), id, kind)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *ContestHandler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	id, kind, ok := h.fileSetAccess(w, r)
	if !ok {
		return
	}
	file, _, err := h.files.OpenArchive(r.Context(), id, kind)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	name := h.files.ArchiveName(id, kind)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	http.ServeContent(w, r, name, stat.ModTime(), file)
}

func (h *ContestHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	id, kind, err := parseFileSet(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filename := chi.URLParam(r, "filename")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	bypass := false
	if parseBool(r.FormValue(formFieldBypass)) {
		userID, _ := userIDFromContext(r.Context())
		user, err := h.contests.User(r.Context(), userID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		bypass = user.IsAdmin()
	}

	src, size, err := h.stageUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(src)

	if err := h.files.Upload(r.Context(), id, kind, filename, src, size, bypass); err != nil {
		writeServiceError(w, r, err)
		return
	}

	listing, err := h.files.List(r.Context(), id, kind)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *ContestHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, kind, err := parseFileSet(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.files.Delete(r.Context(), id, kind, chi.URLParam(r, "filename")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// stageUpload copies the multipart file into the staging directory and
// returns its path and size.
func (h *ContestHandler) stageUpload(r *http.Request) (string, int64, error) {
	file, _, err := r.FormFile(formFieldFile)
	if err != nil {
		return "", 0, errors.New("file is required")
	}
	defer file.Close()

	if err := os.MkdirAll(h.stagingDir, 0o755); err != nil {
		return "", 0, err
	}
	path := filepath.Join(h.stagingDir, ".upload-"+uuid.NewString())
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, err
	}
	size, err := io.Copy(dst, file)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("failed to read upload: %w", err)
	}
	return path, size, nil
}

// fileSetAccess applies the read rules of file sets: downfiles are public,
// solutions are visible to supervisors and, once the contest has ended and
// solutions are published, to everyone.
func (h *ContestHandler) fileSetAccess(w http.ResponseWriter, r *http.Request) (int, types.FileSetKind, bool) {
	id, kind, err := parseFileSet(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, "", false
	}
	if kind == types.FileSetDownfile {
		return id, kind, true
	}

	contest, err := h.contests.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return 0, "", false
	}
	if contest.SolutionVisible(h.now().Unix()) {
		return id, kind, true
	}
	supervisor, err := h.isSupervisor(r, id)
	if err != nil {
		writeServiceError(w, r, err)
		return 0, "", false
	}
	if !supervisor {
		writeError(w, http.StatusForbidden, "solutions are not available")
		return 0, "", false
	}
	return id, kind, true
}

func parseFileSet(r *http.Request) (int, types.FileSetKind, error) {
	id, err := parseContestID(r)
	if err != nil {
		return 0, "", err
	}
	kind, err := types.ParseFileSetKind(chi.URLParam(r, "kind"))
	if err != nil {
		return 0, "", err
	}
	return id, kind, nil
}
