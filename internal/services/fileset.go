package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jjudge-oj/contestd/config"
	"github.com/jjudge-oj/contestd/internal/archive"
	"github.com/jjudge-oj/contestd/internal/fileset"
	"github.com/jjudge-oj/contestd/internal/keylock"
	"github.com/jjudge-oj/contestd/types"
	"github.com/rs/zerolog"
)

// ArchiveMirror receives copies of built archives.
type ArchiveMirror interface {
	PutArchive(ctx context.Context, key, localPath string) error
	Delete(ctx context.Context, key string) error
}

// FileSetService manages the downfile and solution sets of contests and
// their cached archives. Every operation on a set runs under the lock of
// (kind, contest), so archives are never built from a set that is being
// changed and an invalidated archive is never served.
type FileSetService struct {
	layout fileset.Layout
	quotas map[types.FileSetKind]config.Quota
	locks  *keylock.Locker
	mirror ArchiveMirror
	log    zerolog.Logger
}

// NewFileSetService stores sets under root. mirror may be nil.
func NewFileSetService(root string, quotas map[types.FileSetKind]config.Quota, locks *keylock.Locker, mirror ArchiveMirror, log zerolog.Logger) *FileSetService {
	return &FileSetService{
		layout: fileset.Layout{Root: root},
		quotas: quotas,
		locks:  locks,
		mirror: mirror,
		log:    log.With().Str("component", "fileset").Logger(),
	}
}

// Upload moves the file at sourcePath into the set as filename, replacing a
// file of the same name. size is the upload size checked against the quota;
// the size limit is checked before the count limit and both before anything
// is written. Line endings of text files are normalized afterwards on a
// best-effort basis.
func (s *FileSetService) Upload(ctx context.Context, contestID int, kind types.FileSetKind, filename, sourcePath string, size int64, bypassQuota bool) error {
	if err := validateKind(kind); err != nil {
		return err
	}
	if err := fileset.ValidateFilename(filename); err != nil {
		return err
	}

	return s.locks.Do(s.key(kind, contestID), func() error {
		listing, err := s.list(kind, contestID)
		if err != nil {
			return err
		}
		if !bypassQuota {
			if err := s.checkQuota(kind, listing, filename, size); err != nil {
				return err
			}
		}

		dir := s.layout.Dir(kind, contestID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return storageErr("create file set directory", err)
		}
		dst := filepath.Join(dir, filename)
		if err := fileset.Move(sourcePath, dst); err != nil {
			return storageErr("store upload", err)
		}
		s.normalize(dst)

		s.log.Info().
			Int("contest_id", contestID).
			Str("kind", string(kind)).
			Str("filename", filename).
			Int64("size", size).
			Msg("file uploaded")
		return s.invalidate(ctx, kind, contestID)
	})
}

// Delete removes filename from the set. A missing file is not an error;
// the archive is invalidated either way.
func (s *FileSetService) Delete(ctx context.Context, contestID int, kind types.FileSetKind, filename string) error {
	if err := validateKind(kind); err != nil {
		return err
	}
	if err := fileset.ValidateFilename(filename); err != nil {
		return err
	}

	return s.locks.Do(s.key(kind, contestID), func() error {
		if err := fileset.Remove(filepath.Join(s.layout.Dir(kind, contestID), filename)); err != nil {
			return storageErr("remove file", err)
		}
		return s.invalidate(ctx, kind, contestID)
	})
}

// List returns the files of the set and its archive, if one is cached.
func (s *FileSetService) List(_ context.Context, contestID int, kind types.FileSetKind) (types.FileListing, error) {
	if err := validateKind(kind); err != nil {
		return types.FileListing{}, err
	}
	return keylock.RunExclusive(s.locks, s.key(kind, contestID), func() (types.FileListing, error) {
		listing, err := s.list(kind, contestID)
		if err != nil {
			return types.FileListing{}, err
		}
		listing.Archive = s.cachedArchive(kind, contestID)
		return listing, nil
	})
}

// EnsureArchive returns the set's archive, building it when none is
// cached. An absent or empty set fails with ErrNoData.
func (s *FileSetService) EnsureArchive(ctx context.Context, contestID int, kind types.FileSetKind) (types.ArchiveInfo, error) {
	if err := validateKind(kind); err != nil {
		return types.ArchiveInfo{}, err
	}
	return keylock.RunExclusive(s.locks, s.key(kind, contestID), func() (types.ArchiveInfo, error) {
		return s.ensureArchive(ctx, kind, contestID)
	})
}

// OpenArchive is EnsureArchive followed by opening the archive, both under
// the set's lock. The caller closes the file.
func (s *FileSetService) OpenArchive(ctx context.Context, contestID int, kind types.FileSetKind) (*os.File, types.ArchiveInfo, error) {
	if err := validateKind(kind); err != nil {
		return nil, types.ArchiveInfo{}, err
	}

	var f *os.File
	info, err := keylock.RunExclusive(s.locks, s.key(kind, contestID), func() (types.ArchiveInfo, error) {
		info, err := s.ensureArchive(ctx, kind, contestID)
		if err != nil {
			return types.ArchiveInfo{}, err
		}
		f, err = os.Open(s.layout.ArchivePath(kind, contestID))
		if err != nil {
			return types.ArchiveInfo{}, storageErr("open archive", err)
		}
		return info, nil
	})
	if err != nil {
		return nil, types.ArchiveInfo{}, err
	}
	return f, info, nil
}

// ArchiveName is the download name of the set's archive.
func (s *FileSetService) ArchiveName(contestID int, kind types.FileSetKind) string {
	return filepath.Base(s.layout.ArchivePath(kind, contestID))
}

func (s *FileSetService) key(kind types.FileSetKind, contestID int) keylock.Key {
	return keylock.Key{Namespace: string(kind), ContestID: contestID}
}

// The helpers below expect the set's lock to be held.

func (s *FileSetService) list(kind types.FileSetKind, contestID int) (types.FileListing, error) {
	files, exists, err := fileset.List(s.layout.Dir(kind, contestID))
	if err != nil {
		return types.FileListing{}, storageErr("list file set", err)
	}
	if files == nil {
		files = []types.FileInfo{}
	}
	return types.FileListing{Exists: exists, Files: files}, nil
}

func (s *FileSetService) checkQuota(kind types.FileSetKind, listing types.FileListing, filename string, size int64) error {
	q, ok := s.quotas[kind]
	if !ok {
		return nil
	}
	if q.MaxTotalBytes > 0 && listing.TotalSize(filename)+size > q.MaxTotalBytes {
		return &QuotaExceededError{Limit: QuotaSize, Max: q.MaxTotalBytes}
	}
	if q.MaxFileCount > 0 && !listing.Has(filename) && len(listing.Files)+1 > q.MaxFileCount {
		return &QuotaExceededError{Limit: QuotaCount, Max: int64(q.MaxFileCount)}
	}
	return nil
}

func (s *FileSetService) normalize(path string) {
	changed, err := fileset.NormalizeLineEndings(path)
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("line ending normalization failed")
		return
	}
	if changed {
		s.log.Debug().Str("path", path).Msg("line endings normalized")
	}
}

func (s *FileSetService) invalidate(ctx context.Context, kind types.FileSetKind, contestID int) error {
	if err := fileset.Remove(s.layout.ArchivePath(kind, contestID)); err != nil {
		return storageErr("remove archive", err)
	}
	if s.mirror != nil {
		objectKey := fileset.ArchiveKey(kind, contestID)
		if err := s.mirror.Delete(ctx, objectKey); err != nil {
			s.log.Warn().Err(err).Str("object_key", objectKey).Msg("mirrored archive not deleted")
		}
	}
	return nil
}

func (s *FileSetService) cachedArchive(kind types.FileSetKind, contestID int) *types.ArchiveInfo {
	info, err := fileset.StatArchive(s.layout.ArchivePath(kind, contestID))
	if err != nil {
		s.log.Warn().Err(err).Int("contest_id", contestID).Str("kind", string(kind)).Msg("archive stat failed")
		return &types.ArchiveInfo{}
	}
	if info != nil && s.mirror != nil {
		info.ObjectKey = fileset.ArchiveKey(kind, contestID)
	}
	return info
}

func (s *FileSetService) ensureArchive(ctx context.Context, kind types.FileSetKind, contestID int) (types.ArchiveInfo, error) {
	path := s.layout.ArchivePath(kind, contestID)
	existing, err := fileset.StatArchive(path)
	if err != nil {
		return types.ArchiveInfo{}, storageErr("stat archive", err)
	}
	if existing != nil {
		if s.mirror != nil {
			existing.ObjectKey = fileset.ArchiveKey(kind, contestID)
		}
		return *existing, nil
	}

	listing, err := s.list(kind, contestID)
	if err != nil {
		return types.ArchiveInfo{}, err
	}
	if !listing.Exists || len(listing.Files) == 0 {
		return types.ArchiveInfo{}, fmt.Errorf("%w: %s of contest %d", ErrNoData, kind, contestID)
	}

	names := make([]string, len(listing.Files))
	for i, f := range listing.Files {
		names[i] = f.Filename
	}
	if err := archive.Create(path, s.layout.Dir(kind, contestID), names); err != nil {
		return types.ArchiveInfo{}, storageErr("build archive", err)
	}

	info := types.ArchiveInfo{}
	if stat, err := fileset.StatArchive(path); err != nil || stat == nil {
		s.log.Warn().Err(err).Str("path", path).Msg("archive size unknown")
	} else {
		info = *stat
	}

	if s.mirror != nil {
		objectKey := fileset.ArchiveKey(kind, contestID)
		if err := s.mirror.PutArchive(ctx, objectKey, path); err != nil {
			s.log.Warn().Err(err).Str("object_key", objectKey).Msg("archive not mirrored")
		} else {
			info.ObjectKey = objectKey
		}
	}

	s.log.Info().
		Int("contest_id", contestID).
		Str("kind", string(kind)).
		Int("files", len(names)).
		Msg("archive built")
	return info, nil
}

func validateKind(kind types.FileSetKind) error {
	if _, err := types.ParseFileSetKind(string(kind)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFileSet, err)
	}
	return nil
}
