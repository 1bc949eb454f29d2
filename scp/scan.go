package scp

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	godicom "github.com/suyashkumar/dicom"

	"github.com/oncobeam/rtflow/collect"
	"github.com/oncobeam/rtflow/rt"
)

// ScanDirectory fills a collected set from a folder of Part 10 files, the
// send-side counterpart of an inbound session. Non-DICOM files are skipped,
// but a DICOM file that cannot be classified is an error: an export folder
// must contain only RT family objects.
func ScanDirectory(root string, logger *slog.Logger) (*collect.Set, error) {
	if logger == nil {
		logger = slog.Default()
	}

	set := collect.NewSet()
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".dcm") {
			logger.Debug("Skipping non-DICOM file", "path", path)
			return nil
		}

		dataset, err := godicom.ParseFile(path, nil)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		instance, err := rt.Classify(&dataset)
		if err != nil {
			return fmt.Errorf("failed to classify %s: %w", path, err)
		}

		set.Add(instance.Core().PatientID, instance, path)
		logger.Debug("Scanned instance", "instance", rt.Describe(instance), "path", path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Scan complete", "root", root, "patients", len(set.PatientIDs()))
	return set, nil
}
