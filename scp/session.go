// Package scp implements the inbound storage session: every received
// instance is classified, optionally anonymized, and parked in a temporary
// session folder until the session stops and the collected objects are
// reorganized into the export layout along their reference tree.
package scp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	godicom "github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/oncobeam/rtflow/anonymize"
	"github.com/oncobeam/rtflow/collect"
	"github.com/oncobeam/rtflow/dicom"
	"github.com/oncobeam/rtflow/dimse"
	"github.com/oncobeam/rtflow/errors"
	"github.com/oncobeam/rtflow/interfaces"
	"github.com/oncobeam/rtflow/reftree"
	"github.com/oncobeam/rtflow/rt"
	"github.com/oncobeam/rtflow/services"
	"github.com/oncobeam/rtflow/types"
)

// Config controls one storage session.
type Config struct {
	// ExportRoot is where patient trees are materialized on Stop.
	ExportRoot string

	// PlanLabel keeps only plans with this label when non-empty.
	PlanLabel string
	// ApprovedOnly keeps only plans with approval status Approved.
	ApprovedOnly bool
	// TreeDump writes a tree.txt next to each exported patient.
	TreeDump bool

	// Anonymize replaces patient identifiers on every received instance.
	Anonymize       bool
	AnonymizeID     string
	AnonymizeName   string
	SecurityProfile *anonymize.Profile
}

// Session collects C-STORE requests for one export run. It is safe for the
// sequential requests of a single association; the collected set is guarded
// for the SCP and scan paths sharing a session.
type Session struct {
	cfg     Config
	logger  *slog.Logger
	tempDir string

	anonymizer *anonymize.Anonymizer
	audit      *anonymize.AuditWriter

	mu  sync.Mutex
	set *collect.Set
}

// NewSession creates the session temp folder and, when enabled, the
// anonymizer and audit writer.
func NewSession(cfg Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tempDir := filepath.Join(os.TempDir(), "rtflow-session-"+uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session folder: %w", err)
	}

	s := &Session{
		cfg:     cfg,
		logger:  logger,
		tempDir: tempDir,
		set:     collect.NewSet(),
	}

	if cfg.Anonymize {
		anonymizer, err := anonymize.New(cfg.SecurityProfile)
		if err != nil {
			os.RemoveAll(tempDir)
			return nil, err
		}
		s.anonymizer = anonymizer
		s.audit = anonymize.NewAuditWriter()
	}

	return s, nil
}

// TempDir exposes the session-scoped folder holding received files.
func (s *Session) TempDir() string {
	return s.tempDir
}

// Handler returns the DIMSE dispatch for this session: verification plus
// storage.
func (s *Session) Handler() interfaces.ServiceHandler {
	registry := services.NewRegistry()
	registry.RegisterHandler(dimse.CEchoRQ, services.NewEchoService())
	registry.RegisterHandler(dimse.CStoreRQ, s)
	return registry
}

// HandleDIMSE processes one C-STORE request. Failures are answered with a
// failure status so the association survives; classification failures are
// surfaced loudly since every received object must land in the hierarchy.
func (s *Session) HandleDIMSE(ctx context.Context, msg *types.Message, data []byte) (*types.Message, []byte, error) {
	instance, err := s.receive(msg, data)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to process incoming instance",
			"sop_class", msg.AffectedSOPClassUID,
			"sop_instance", msg.AffectedSOPInstanceUID,
			"error", err)
		return services.NewCStoreResponse(msg, dimse.StatusFailure), nil, nil
	}

	s.logger.InfoContext(ctx, "Stored instance",
		"instance", rt.Describe(instance))
	return services.NewCStoreResponse(msg, dimse.StatusSuccess), nil, nil
}

func (s *Session) receive(msg *types.Message, data []byte) (rt.Instance, error) {
	dataset, transferSyntax, err := normalizeDataset(data, msg.TransferSyntaxUID)
	if err != nil {
		return nil, err
	}

	wrapped := dicom.BuildPart10(msg.AffectedSOPClassUID, msg.AffectedSOPInstanceUID, transferSyntax, dataset)
	parsed, err := godicom.Parse(bytes.NewReader(wrapped), int64(len(wrapped)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	anonymized := false
	if s.anonymizer != nil {
		originalID := datasetString(&parsed, tag.PatientID)
		originalName := datasetString(&parsed, tag.PatientName)
		if err := s.anonymizer.AnonymizeInPlace(&parsed, s.cfg.AnonymizeID, s.cfg.AnonymizeName); err != nil {
			return nil, fmt.Errorf("failed to anonymize dataset: %w", err)
		}
		s.audit.Record(originalID, originalName, s.cfg.AnonymizeID, s.cfg.AnonymizeName)
		anonymized = true
	}

	instance, err := rt.Classify(&parsed)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.tempDir,
		fmt.Sprintf("%s.%s.dcm", instance.Modality().FilePrefix(), instance.Core().InstanceUID))
	if anonymized {
		file, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := godicom.Write(file, parsed); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := file.Close(); err != nil {
			return nil, fmt.Errorf("failed to close %s: %w", path, err)
		}
	} else {
		if err := os.WriteFile(path, wrapped, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	s.mu.Lock()
	s.set.Add(instance.Core().PatientID, instance, path)
	s.mu.Unlock()

	return instance, nil
}

// Stop finalizes the session: per patient the reference tree is built and
// its files relocated into the export layout, the anonymization audit is
// written when anything was anonymized, and the temp folder is removed.
func (s *Session) Stop() error {
	var entries []anonymize.AuditEntry
	if s.audit != nil {
		entries = s.audit.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, patientID := range s.set.PatientIDs() {
		tree := reftree.Build(s.set.Patient(patientID), s.logger)
		if err := s.relocate(tree); err != nil {
			return err
		}
	}

	if len(entries) > 0 {
		auditPath := filepath.Join(s.cfg.ExportRoot, "anonymization_map.csv")
		if err := anonymize.WriteAuditCSV(auditPath, entries); err != nil {
			return err
		}
	}

	return os.RemoveAll(s.tempDir)
}

// relocate moves one patient tree into exportRoot/patientID, honoring the
// plan filters. Unconnected objects move only when no plan filter is
// active, since a filtered export is scoped to the selected plans.
func (s *Session) relocate(tree *reftree.Tree) error {
	dir := filepath.Join(s.cfg.ExportRoot, tree.PatientID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export folder %s: %w", dir, err)
	}

	filtered := s.cfg.PlanLabel != "" || s.cfg.ApprovedOnly

	for _, plan := range tree.Plans {
		if !s.keepPlan(plan) {
			s.logger.Info("Plan excluded by export filter",
				"instance", rt.Describe(plan.Plan),
				"label", plan.Plan.PlanLabel,
				"approval", plan.Plan.Approval.String())
			continue
		}
		for _, e := range planEntries(plan) {
			if err := moveEntry(e, dir); err != nil {
				return err
			}
		}
	}

	if !filtered {
		for _, e := range unconnectedEntries(tree) {
			if err := moveEntry(e, dir); err != nil {
				return err
			}
		}
	}

	if s.cfg.TreeDump {
		dump, err := os.Create(filepath.Join(dir, "tree.txt"))
		if err != nil {
			return fmt.Errorf("failed to create tree dump: %w", err)
		}
		tree.Dump(dump)
		if err := dump.Close(); err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) keepPlan(item *reftree.PlanItem) bool {
	if s.cfg.PlanLabel != "" && item.Plan.PlanLabel != s.cfg.PlanLabel {
		return false
	}
	if s.cfg.ApprovedOnly && item.Plan.Approval != rt.ApprovalApproved {
		return false
	}
	return true
}

// planEntries flattens every file belonging to a plan's claimed subtree.
func planEntries(item *reftree.PlanItem) []collect.Entry {
	var entries []collect.Entry

	if item.StructureSet != nil {
		entries = append(entries, structureSetEntries(item.StructureSet)...)
	}
	entries = append(entries, item.Entry)
	for _, beam := range item.Beams {
		entries = append(entries, beam.DRRImages...)
		entries = append(entries, beam.RTImages...)
		entries = append(entries, beam.TreatmentRecords...)
	}
	for _, series := range item.ConeBeamSeries {
		entries = append(entries, series.Entries...)
	}
	entries = append(entries, item.Doses...)
	for _, reg := range item.Registrations {
		for _, series := range reg.RegisteredCTSeries {
			entries = append(entries, series.Entries...)
		}
		for _, ss := range reg.RegisteredStructureSets {
			entries = append(entries, structureSetEntries(ss)...)
		}
		entries = append(entries, reg.Entry)
	}

	return entries
}

func structureSetEntries(item *reftree.StructureSetItem) []collect.Entry {
	var entries []collect.Entry
	if item.ImageSeries != nil {
		entries = append(entries, item.ImageSeries.Entries...)
	}
	return append(entries, item.Entry)
}

func unconnectedEntries(tree *reftree.Tree) []collect.Entry {
	var entries []collect.Entry
	for _, ss := range tree.StructureSets {
		entries = append(entries, structureSetEntries(ss)...)
	}
	entries = append(entries, tree.Doses...)
	entries = append(entries, tree.Registrations...)
	entries = append(entries, tree.TreatmentRecords...)
	for _, group := range [][]collect.Series{
		tree.RTImageSeries, tree.ConeBeamSeries, tree.CTSeries, tree.MRSeries, tree.PETSeries,
	} {
		for _, series := range group {
			entries = append(entries, series.Entries...)
		}
	}
	return entries
}

func moveEntry(e collect.Entry, dir string) error {
	target := filepath.Join(dir, filepath.Base(e.Path))
	if err := os.Rename(e.Path, target); err == nil {
		return nil
	}

	// Rename fails across filesystems, fall back to copy and delete.
	data, err := os.ReadFile(e.Path)
	if err != nil {
		return fmt.Errorf("failed to relocate %s: %w", e.Path, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("failed to relocate %s: %w", e.Path, err)
	}
	return os.Remove(e.Path)
}

func datasetString(ds *godicom.Dataset, t tag.Tag) string {
	element, err := ds.FindElementByTag(t)
	if err != nil {
		return ""
	}
	if values, ok := element.Value.GetValue().([]string); ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

// normalizeDataset prepares raw C-STORE dataset bytes for Part 10 wrapping.
// The negotiated transfer syntax of the presentation context is
// authoritative: the dataset is stored under it, except that deflated
// payloads are inflated first and stored as plain Explicit VR. When no
// negotiated syntax is known (the filesystem scan path) the encoding is
// sniffed from the leading element.
func normalizeDataset(data []byte, negotiated string) ([]byte, string, error) {
	switch negotiated {
	case "":
	case types.DeflatedExplicitVRLittleEndian:
		inflated, err := dicom.InflateDataset(data)
		if err != nil {
			return nil, "", fmt.Errorf("%w: failed to inflate dataset: %v", errors.ErrUnsupportedTransfer, err)
		}
		return inflated, types.ExplicitVRLittleEndian, nil
	default:
		return data, negotiated, nil
	}

	if ts, ok := sniffTransferSyntax(data); ok {
		return data, ts, nil
	}

	inflated, err := dicom.InflateDataset(data)
	if err == nil {
		if ts, ok := sniffTransferSyntax(inflated); ok {
			return inflated, ts, nil
		}
	}

	return nil, "", fmt.Errorf("%w: unrecognized dataset encoding", errors.ErrUnsupportedTransfer)
}

func sniffTransferSyntax(data []byte) (string, bool) {
	if len(data) < 8 {
		return "", false
	}

	group := uint16(data[0]) | (uint16(data[1]) << 8)
	switch group {
	case 0x0008, 0x0010, 0x0018, 0x0020:
	default:
		return "", false
	}

	if isExplicitVR(string(data[4:6])) {
		return types.ExplicitVRLittleEndian, true
	}
	return types.ImplicitVRLittleEndian, true
}

func isExplicitVR(vr string) bool {
	switch vr {
	case "AE", "AS", "AT", "CS", "DA", "DS", "DT", "FL", "FD", "IS", "LO", "LT",
		"OB", "OD", "OF", "OL", "OW", "PN", "SH", "SL", "SQ", "SS", "ST", "TM",
		"UC", "UI", "UL", "UN", "UR", "US", "UT":
		return true
	}
	return false
}
