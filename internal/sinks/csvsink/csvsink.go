// Package csvsink implements the CSV sink: one file per
// (date, operating_system, region) at a deterministic path, with any
// pre-existing file at that path removed before write.
package csvsink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Zeebrow/ec2-price-tracker/internal/ec2err"
	"github.com/Zeebrow/ec2-price-tracker/internal/record"
)

// Sink writes pricing records under a configured data root, following the
// layout <root>/<data_type>/<date>/<operating_system>/<region>.csv.
type Sink struct {
	root     string
	dataType string
}

// New builds a Sink rooted at root, writing under the given data type
// subdirectory (e.g. "ec2").
func New(root, dataType string) *Sink {
	return &Sink{root: root, dataType: dataType}
}

// Path returns the canonical file path for one (date, operating_system,
// region) triple, without creating anything.
func (s *Sink) Path(date, operatingSystem, region string) string {
	return filepath.Join(s.root, s.dataType, date, operatingSystem, region+".csv")
}

// Write emits one CSV file containing a header row (record.Fields()) and
// one data row per record, in the order given. Any existing file at the
// target path is removed first; the directory tree is created as needed.
func (s *Sink) Write(date, operatingSystem, region string, records []record.Record) error {
	path := s.Path(date, operatingSystem, region)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating directory for %s: %v", ec2err.ErrSink, path, err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("%w: removing stale file %s: %v", ec2err.ErrSink, path, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", ec2err.ErrSink, path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(record.Fields()); err != nil {
		return fmt.Errorf("%w: writing header to %s: %v", ec2err.ErrSink, path, err)
	}
	for _, rec := range records {
		if err := w.Write(rec.Row()); err != nil {
			return fmt.Errorf("%w: writing row to %s: %v", ec2err.ErrSink, path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flushing %s: %v", ec2err.ErrSink, path, err)
	}
	return nil
}
