package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"cmsbackup/internal/backup"
)

const (
	// ArchiveDirName is the directory under the media root that holds media snapshots.
	// A directory with this name is never archived, at any depth.
	ArchiveDirName = "backups"

	archivePrefix     = "media_"
	archiveTimeLayout = "20060102_150405"
	partialSuffix     = ".partial"
)

// MediaArchiver copies the media tree into <media_root>/backups/media_<timestamp>.
type MediaArchiver struct {
	root   string
	ignore []string
	clock  backup.Clock
}

// NewMediaArchiver creates an archiver for mediaRoot. Patterns in ignore are
// combined with the contents of <mediaRoot>/.backupignore at archive time.
func NewMediaArchiver(mediaRoot string, ignore []string, clock backup.Clock) (*MediaArchiver, error) {
	if mediaRoot == "" {
		return nil, errors.New("media root is required")
	}
	abs, err := filepath.Abs(mediaRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving media root: %w", err)
	}
	if clock == nil {
		clock = backup.RealClock{}
	}
	return &MediaArchiver{root: abs, ignore: ignore, clock: clock}, nil
}

// Root returns the absolute media root.
func (a *MediaArchiver) Root() string { return a.root }

func (a *MediaArchiver) archiveDir() string {
	return filepath.Join(a.root, ArchiveDirName)
}

// ArchiveMedia copies every regular file under the media root into a new
// snapshot directory. The copy is built in a hidden partial directory and
// renamed into place once complete.
func (a *MediaArchiver) ArchiveMedia(ctx context.Context) (*backup.MediaArchive, error) {
	info, err := os.Stat(a.root)
	if err != nil {
		return nil, &backup.MediaArchiveError{Path: a.root, Err: err}
	}
	if !info.IsDir() {
		return nil, &backup.MediaArchiveError{Path: a.root, Err: errors.New("not a directory")}
	}

	matcher, err := a.matcher()
	if err != nil {
		return nil, &backup.MediaArchiveError{Path: filepath.Join(a.root, IgnoreFileName), Err: err}
	}

	if err := os.MkdirAll(a.archiveDir(), 0755); err != nil {
		return nil, &backup.MediaArchiveError{Path: a.archiveDir(), Err: err}
	}

	name, err := a.nextName()
	if err != nil {
		return nil, &backup.MediaArchiveError{Path: a.archiveDir(), Err: err}
	}
	final := filepath.Join(a.archiveDir(), name)
	partial := filepath.Join(a.archiveDir(), "."+name+partialSuffix)

	if err := os.Mkdir(partial, 0755); err != nil {
		return nil, &backup.MediaArchiveError{Path: partial, Err: err}
	}

	archive := &backup.MediaArchive{Dir: final}
	if err := a.copyTree(ctx, partial, matcher, archive); err != nil {
		os.RemoveAll(partial)
		return nil, err
	}

	if err := os.Rename(partial, final); err != nil {
		os.RemoveAll(partial)
		return nil, &backup.MediaArchiveError{Path: final, Err: err}
	}
	return archive, nil
}

func (a *MediaArchiver) matcher() (*IgnoreMatcher, error) {
	lines, err := ParseIgnoreFile(filepath.Join(a.root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	patterns := make([]string, 0, len(a.ignore)+len(lines)+1)
	patterns = append(patterns, a.ignore...)
	patterns = append(patterns, lines...)
	patterns = append(patterns, IgnoreFileName)
	return NewIgnoreMatcher(patterns), nil
}

// nextName returns media_<timestamp>, suffixed with _N when that name is taken.
func (a *MediaArchiver) nextName() (string, error) {
	base := archivePrefix + a.clock.Now().UTC().Format(archiveTimeLayout)
	name := base
	for n := 1; ; n++ {
		_, err := os.Lstat(filepath.Join(a.archiveDir(), name))
		if errors.Is(err, iofs.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}
}

func (a *MediaArchiver) copyTree(ctx context.Context, dest string, matcher *IgnoreMatcher, archive *backup.MediaArchive) error {
	return filepath.WalkDir(a.root, func(path string, d iofs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return &backup.MediaArchiveError{Path: path, Err: walkErr}
		}
		if err := ctx.Err(); err != nil {
			return &backup.MediaArchiveError{Path: path, Err: err}
		}

		rel, err := filepath.Rel(a.root, path)
		if err != nil {
			return &backup.MediaArchiveError{Path: path, Err: err}
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if d.Name() == ArchiveDirName || matcher.Match(rel) {
				return filepath.SkipDir
			}
			if err := os.MkdirAll(filepath.Join(dest, rel), 0755); err != nil {
				return &backup.MediaArchiveError{Path: path, Err: err}
			}
			return nil
		}

		if !d.Type().IsRegular() || matcher.Match(rel) {
			return nil
		}

		n, err := copyFile(path, filepath.Join(dest, rel))
		if err != nil {
			return &backup.MediaArchiveError{Path: path, Err: err}
		}
		archive.Files++
		archive.Bytes += n
		return nil
	})
}

// copyFile copies src to dst, preserving the permission bits and modification time.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, err
	}
	if err := out.Close(); err != nil {
		return n, err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return n, err
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return n, err
	}
	return n, nil
}

// RemoveArchive deletes a snapshot directory created by ArchiveMedia.
// Paths outside the archive directory are refused. A missing directory is not an error.
func (a *MediaArchiver) RemoveArchive(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving archive path: %w", err)
	}
	if filepath.Dir(abs) != a.archiveDir() || !strings.HasPrefix(filepath.Base(abs), archivePrefix) {
		return fmt.Errorf("refusing to remove %s: not a media archive under %s", dir, a.archiveDir())
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("removing media archive: %w", err)
	}
	return nil
}

var _ backup.MediaArchiver = (*MediaArchiver)(nil)
