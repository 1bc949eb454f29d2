// Package export walks a built reference tree back out to a remote node in
// dependency order, with resumable skip-on-already-sent and machine name
// remapping for plans that were renamed at receive time.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	godicom "github.com/suyashkumar/dicom"

	"github.com/oncobeam/rtflow/client"
	"github.com/oncobeam/rtflow/collect"
	"github.com/oncobeam/rtflow/dicom"
	"github.com/oncobeam/rtflow/dimse"
	"github.com/oncobeam/rtflow/errors"
	"github.com/oncobeam/rtflow/reftree"
	"github.com/oncobeam/rtflow/rt"
	"github.com/oncobeam/rtflow/types"
)

// Sender issues C-STORE requests over an open association. Satisfied by
// *client.Association.
type Sender interface {
	SendCStore(req *client.CStoreRequest) (*client.CStoreResponse, error)
}

// Result counts the outcome of one tree transmission. Sent includes files
// skipped because the status log already listed them as stored.
type Result struct {
	Sent    int
	Skipped int
}

// Orchestrator transmits reference trees over a single association. A
// failed store aborts the remaining sends for that tree; resumption relies
// on the status log, never on automatic retry.
type Orchestrator struct {
	sender Sender
	status *StatusLog
	logger *slog.Logger

	messageID  uint16
	knownPlans map[string]*rt.Plan
	sentPlans  map[string]bool
}

// NewOrchestrator wires a sender and status log. A nil logger falls back to
// the default.
func NewOrchestrator(sender Sender, status *StatusLog, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sender:     sender,
		status:     status,
		logger:     logger,
		knownPlans: make(map[string]*rt.Plan),
		sentPlans:  make(map[string]bool),
	}
}

// SendTree transmits one patient's tree in dependency order: for each plan
// its structure set (image series first), the plan itself, beam images and
// records, cone-beam series, doses, then registrations. Unconnected
// structure sets, image series, registrations and treatment records follow,
// and orphan doses go last under their own business rules.
func (o *Orchestrator) SendTree(tree *reftree.Tree) (Result, error) {
	var result Result

	for _, plan := range tree.Plans {
		o.knownPlans[plan.Plan.Identity.InstanceUID] = plan.Plan
	}

	for _, plan := range tree.Plans {
		if plan.StructureSet != nil {
			if err := o.sendStructureSet(plan.StructureSet, &result); err != nil {
				return result, err
			}
		}
		if err := o.sendPlan(plan, &result); err != nil {
			return result, err
		}
		for _, beam := range plan.Beams {
			for _, group := range [][]collect.Entry{beam.DRRImages, beam.RTImages, beam.TreatmentRecords} {
				if err := o.sendEntries(group, &result); err != nil {
					return result, err
				}
			}
		}
		for _, series := range plan.ConeBeamSeries {
			if err := o.sendEntries(series.Entries, &result); err != nil {
				return result, err
			}
		}
		if err := o.sendEntries(plan.Doses, &result); err != nil {
			return result, err
		}
		for _, reg := range plan.Registrations {
			for _, series := range reg.RegisteredCTSeries {
				if err := o.sendEntries(series.Entries, &result); err != nil {
					return result, err
				}
			}
			for _, ss := range reg.RegisteredStructureSets {
				if err := o.sendStructureSet(ss, &result); err != nil {
					return result, err
				}
			}
			if err := o.sendEntry(reg.Entry, &result); err != nil {
				return result, err
			}
		}
	}

	for _, ss := range tree.StructureSets {
		if err := o.sendStructureSet(ss, &result); err != nil {
			return result, err
		}
	}
	for _, group := range [][]collect.Series{
		tree.CTSeries, tree.MRSeries, tree.PETSeries, tree.ConeBeamSeries, tree.RTImageSeries,
	} {
		for _, series := range group {
			if err := o.sendEntries(series.Entries, &result); err != nil {
				return result, err
			}
		}
	}
	if err := o.sendEntries(tree.Registrations, &result); err != nil {
		return result, err
	}
	if err := o.sendEntries(tree.TreatmentRecords, &result); err != nil {
		return result, err
	}

	if err := o.sendOrphanDoses(tree.Doses, &result); err != nil {
		return result, err
	}

	return result, nil
}

func (o *Orchestrator) sendStructureSet(item *reftree.StructureSetItem, result *Result) error {
	if item.ImageSeries != nil {
		if err := o.sendEntries(item.ImageSeries.Entries, result); err != nil {
			return err
		}
	}
	return o.sendEntry(item.Entry, result)
}

// sendPlan transmits a plan, routing it through a rewritten temporary copy
// when a machine name substitution was applied at receive time. The status
// log always records the original path.
func (o *Orchestrator) sendPlan(item *reftree.PlanItem, result *Result) error {
	uid := item.Plan.Identity.InstanceUID

	if o.status.Contains(item.Entry.Path) {
		o.logger.Debug("Skipping already sent file", "path", item.Entry.Path)
		o.sentPlans[uid] = true
		result.Sent++
		return nil
	}

	path := item.Entry.Path
	if item.Plan.OriginalMachineName != "" {
		tempPath, err := writeRemappedPlan(path, item.Plan.MachineName)
		if err != nil {
			o.logger.Error("Failed to rewrite plan with mapped machine name",
				"instance", rt.Describe(item.Plan), "error", err)
			return err
		}
		defer os.Remove(tempPath)

		o.logger.Info("Sending plan with remapped treatment machine",
			"original_machine", item.Plan.OriginalMachineName,
			"machine", item.Plan.MachineName,
			"path", path)
		path = tempPath
	}

	if err := o.storeFile(path); err != nil {
		o.logger.Error("Store failed, aborting remaining sends for this tree",
			"instance", rt.Describe(item.Plan), "error", err)
		return err
	}

	o.sentPlans[uid] = true
	result.Sent++
	return o.status.MarkSent(item.Entry.Path)
}

func (o *Orchestrator) sendEntries(entries []collect.Entry, result *Result) error {
	for _, e := range entries {
		if err := o.sendEntry(e, result); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) sendEntry(e collect.Entry, result *Result) error {
	if o.status.Contains(e.Path) {
		o.logger.Debug("Skipping already sent file", "path", e.Path)
		result.Sent++
		return nil
	}

	if err := o.storeFile(e.Path); err != nil {
		o.logger.Error("Store failed, aborting remaining sends for this tree",
			"instance", rt.Describe(e.Instance), "error", err)
		return err
	}

	result.Sent++
	return o.status.MarkSent(e.Path)
}

// sendOrphanDoses attempts doses whose plan was not part of this tree. The
// remote node rejects doses without a plan, so each candidate is checked
// against the plans seen so far and skipped with a diagnostic when the plan
// is unknown, unsent, or targets a non-Varian treatment unit.
func (o *Orchestrator) sendOrphanDoses(doses []collect.Entry, result *Result) error {
	for _, e := range doses {
		if skip := o.orphanDoseSkip(e); skip != nil {
			o.logger.Info("Skipping orphan dose", "reason", skip.Reason, "instance", skip.Instance)
			result.Skipped++
			continue
		}

		o.logger.Warn("Sending dose whose plan was matched outside this tree, remote may reject it",
			"instance", rt.Describe(e.Instance))
		if err := o.sendEntry(e, result); err != nil {
			return err
		}
	}
	return nil
}

// orphanDoseSkip decides whether an orphan dose may be sent. A nil return
// means the dose passed every rule.
func (o *Orchestrator) orphanDoseSkip(e collect.Entry) *errors.SkipError {
	dose, ok := e.Instance.(*rt.Dose)
	if !ok || dose.Plan == nil {
		return errors.NewSkipError(rt.Describe(e.Instance), "no plan reference")
	}

	plan, found := o.knownPlans[dose.Plan.InstanceUID]
	switch {
	case !found:
		return errors.NewSkipError(rt.Describe(dose), "referenced plan was not received")
	case !o.sentPlans[dose.Plan.InstanceUID]:
		return errors.NewSkipError(rt.Describe(dose), "referenced plan was not sent")
	case !plan.UsesVarianTreatmentUnit():
		return errors.NewSkipError(rt.Describe(dose), "plan targets a non-Varian treatment unit")
	}
	return nil
}

// storeFile reads a Part 10 file and issues a C-STORE with its bare dataset.
// Deflated datasets are inflated first since the deflate transfer syntax is
// not negotiated for outbound associations.
func (o *Orchestrator) storeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	meta, err := dicom.ParseFileMeta(data)
	if err != nil {
		return fmt.Errorf("failed to parse file meta of %s: %w", path, err)
	}

	dataset, err := dicom.StripPart10Header(data)
	if err != nil {
		return fmt.Errorf("failed to strip header of %s: %w", path, err)
	}

	if meta.TransferSyntaxUID == types.DeflatedExplicitVRLittleEndian {
		dataset, err = dicom.InflateDataset(dataset)
		if err != nil {
			return fmt.Errorf("failed to inflate %s: %w", path, err)
		}
	}

	o.messageID++
	resp, err := o.sender.SendCStore(&client.CStoreRequest{
		SOPClassUID:    meta.SOPClassUID,
		SOPInstanceUID: meta.SOPInstanceUID,
		Data:           dataset,
		MessageID:      o.messageID,
	})
	if err != nil {
		return err
	}
	if resp.Status != dimse.StatusSuccess {
		return errors.NewDIMSEError("C-STORE", resp.Status, meta.SOPInstanceUID)
	}
	return nil
}

// writeRemappedPlan parses a plan file, applies the mapped machine name to
// every beam and writes the result to a temporary file next to the original.
// The caller owns deletion of the returned path.
func writeRemappedPlan(path, machineName string) (string, error) {
	ds, err := godicom.ParseFile(path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse plan %s: %w", path, err)
	}

	if err := rt.ApplyMachineNameToDataset(&ds, machineName); err != nil {
		return "", fmt.Errorf("failed to apply machine name to %s: %w", path, err)
	}

	tempPath := filepath.Join(filepath.Dir(path), uuid.NewString()+".dcm")
	file, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary plan copy: %w", err)
	}

	if err := godicom.Write(file, ds); err != nil {
		file.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to write temporary plan copy: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close temporary plan copy: %w", err)
	}
	return tempPath, nil
}
