// Package archiver packages a day's CSV tree into a single zip archive,
// atomically replacing any prior archive for the same date.
package archiver

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Zeebrow/ec2-price-tracker/internal/ec2err"
)

// Archive produces <root>/<dataType>/<date>.archive containing every file
// under <root>/<dataType>/<date>/**, with internal paths preserved
// relative to <date>/.
//
// Atomicity: if an archive for the same date already exists it is first
// renamed to a unique backup path. The backup is deleted only once the
// new archive has been fully written without error; on any write error
// the partially written archive is removed, the backup is left in place
// and the original tree is untouched. On
// success the uncompressed tree under <date>/ is removed.
func Archive(root, dataType, date string) error {
	typeDir := filepath.Join(root, dataType)
	treeDir := filepath.Join(typeDir, date)
	archivePath := filepath.Join(typeDir, date+".archive")

	var backupPath string
	if _, err := os.Stat(archivePath); err == nil {
		backupPath = filepath.Join(typeDir, fmt.Sprintf("%s.bkup-%s.archive", date, uuid.NewString()))
		if err := os.Rename(archivePath, backupPath); err != nil {
			return fmt.Errorf("%w: backing up existing archive: %v", ec2err.ErrSink, err)
		}
	}

	if err := writeArchive(archivePath, treeDir, date); err != nil {
		// drop the partial archive, leave the backup in place; surface the error
		_ = os.Remove(archivePath)
		return fmt.Errorf("%w: writing archive %s: %v", ec2err.ErrSink, archivePath, err)
	}

	if backupPath != "" {
		if err := os.Remove(backupPath); err != nil {
			return fmt.Errorf("%w: removing backup %s after successful write: %v", ec2err.ErrSink, backupPath, err)
		}
	}

	if err := os.RemoveAll(treeDir); err != nil {
		return fmt.Errorf("%w: removing uncompressed tree %s: %v", ec2err.ErrSink, treeDir, err)
	}
	return nil
}

func writeArchive(archivePath, treeDir, date string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	err = filepath.WalkDir(treeDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(treeDir, path)
		if err != nil {
			return err
		}
		internalName := filepath.ToSlash(filepath.Join(date, rel))

		w, err := zw.Create(internalName)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		return err
	}
	return zw.Close()
}
