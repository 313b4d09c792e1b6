package backup

import "context"

// MediaArchive describes a completed media snapshot directory.
type MediaArchive struct {
	Dir   string
	Files int
	Bytes int64
}

// MediaArchiver copies the media tree into timestamped snapshot directories.
type MediaArchiver interface {
	// ArchiveMedia creates a new snapshot directory and copies every media file into it.
	// On failure no partial directory is left behind and the error is a *MediaArchiveError.
	ArchiveMedia(ctx context.Context) (*MediaArchive, error)

	// RemoveArchive deletes a snapshot directory created by ArchiveMedia.
	RemoveArchive(dir string) error
}
