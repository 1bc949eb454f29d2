package reftree

import (
	"log/slog"
	"sort"

	"github.com/oncobeam/rtflow/collect"
	"github.com/oncobeam/rtflow/rt"
)

type builder struct {
	store  *collect.Store
	logger *slog.Logger
}

// Build consumes a patient's collected store and produces the reference
// tree. Plans are probed first without removing anything, so every plan
// resolves its sub-structure against the full working set; only then are the
// claimed instances destructively removed, and whatever is left is extracted
// as unconnected.
func Build(store *collect.Store, logger *slog.Logger) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	b := &builder{store: store, logger: logger}
	tree := &Tree{PatientID: store.PatientID()}

	// Pass 1: non-destructive probe of every plan.
	for _, e := range store.Find(rt.ModalityPlan) {
		plan, ok := e.Instance.(*rt.Plan)
		if !ok {
			continue
		}
		tree.Plans = append(tree.Plans, b.probePlan(e, plan))
	}

	// Pass 2: remove the claimed series, then finalize each plan by
	// removing its claimed instances.
	b.removeClaimedSeries(tree.Plans)
	for _, item := range tree.Plans {
		b.finalize(item)
	}

	// Pass 3: everything still in the store is unconnected.
	b.extractUnconnected(tree)

	return tree
}

func (b *builder) probePlan(entry collect.Entry, plan *rt.Plan) *PlanItem {
	item := &PlanItem{Entry: entry, Plan: plan}
	planUID := plan.Identity.InstanceUID

	b.logger.Debug("Probing plan", "plan", plan.Label(), "instance_uid", planUID)

	// Everything that points back at this plan.
	pool := b.store.FindInstances(rt.ModalityRTImage, func(i rt.Instance) bool {
		img := i.(*rt.RTImage)
		return img.Plan != nil && img.Plan.InstanceUID == planUID
	})
	records := b.store.FindInstances(rt.ModalityTreatmentRecord, func(i rt.Instance) bool {
		return i.(*rt.TreatmentRecord).Plan.InstanceUID == planUID
	})

	for _, beam := range plan.Beams {
		beamItem := &BeamItem{Beam: beam}

		// DRRs leave the pool before beam-number matching so an image
		// listed as a DRR never doubles as a plain per-beam image.
		isDRR := make(map[string]bool, len(beam.DRRReferences))
		for _, ref := range beam.DRRReferences {
			isDRR[ref.InstanceUID] = true
		}
		var rest []collect.Entry
		for _, e := range pool {
			if isDRR[e.Instance.Core().InstanceUID] {
				beamItem.DRRImages = append(beamItem.DRRImages, e)
			} else {
				rest = append(rest, e)
			}
		}
		pool = rest

		for _, e := range pool {
			if e.Instance.(*rt.RTImage).ReferencedBeamNumber == beam.Number {
				beamItem.RTImages = append(beamItem.RTImages, e)
			}
		}

		for _, e := range records {
			if e.Instance.(*rt.TreatmentRecord).ReferencedBeamNumber == beam.Number {
				beamItem.TreatmentRecords = append(beamItem.TreatmentRecords, e)
			}
		}
		sort.SliceStable(beamItem.TreatmentRecords, func(i, j int) bool {
			a := beamItem.TreatmentRecords[i].Instance.(*rt.TreatmentRecord)
			b := beamItem.TreatmentRecords[j].Instance.(*rt.TreatmentRecord)
			return a.CurrentFractionNumber < b.CurrentFractionNumber
		})

		item.Beams = append(item.Beams, beamItem)
	}

	if plan.StructureSet != nil {
		item.StructureSet = b.findStructureSet(plan.StructureSet.InstanceUID)
		if item.StructureSet == nil {
			b.logger.Warn("Structure set referenced but not received",
				"plan", plan.Label(), "structure_set_uid", plan.StructureSet.InstanceUID)
		}
	}

	item.Doses = b.store.FindInstances(rt.ModalityDose, func(i rt.Instance) bool {
		d := i.(*rt.Dose)
		return d.Plan != nil && d.Plan.InstanceUID == planUID
	})

	for _, s := range b.store.SeriesOf(rt.ModalityCT) {
		if len(s.Entries) == 0 {
			continue
		}
		cone, ok := s.Entries[0].Instance.(*rt.ConeBeamCTImage)
		if ok && cone.Plan.InstanceUID == planUID {
			item.ConeBeamSeries = append(item.ConeBeamSeries, s)
		}
	}

	if item.StructureSet != nil {
		b.probeRegistrations(item)
	}

	return item
}

// probeRegistrations attaches registrations anchored at the plan's structure
// set frame, plus the structure sets and CT series reachable through each
// registration's second frame.
func (b *builder) probeRegistrations(item *PlanItem) {
	planFrame := item.StructureSet.StructureSet.FrameOfReferenceUID
	planSSUID := item.StructureSet.StructureSet.Identity.InstanceUID

	regs := b.store.FindInstances(rt.ModalityRegistration, func(i rt.Instance) bool {
		return i.(*rt.Registration).FrameOfReference == planFrame
	})

	for _, re := range regs {
		reg := re.Instance.(*rt.Registration)
		regItem := &RegistrationItem{Entry: re, Registration: reg}

		claimedSeries := make(map[string]bool)
		for _, se := range b.store.Find(rt.ModalityStructureSet) {
			ss := se.Instance.(*rt.StructureSet)
			if ss.Identity.InstanceUID == planSSUID {
				continue
			}
			if ss.FrameOfReferenceUID != reg.SecondFrameOfReference {
				continue
			}
			ssItem := &StructureSetItem{
				Entry:        se,
				StructureSet: ss,
				ImageSeries:  b.resolveImageSeries(ss.FrameOfReferenceUID),
			}
			if ssItem.ImageSeries != nil {
				claimedSeries[ssItem.ImageSeries.SeriesUID] = true
			}
			regItem.RegisteredStructureSets = append(regItem.RegisteredStructureSets, ssItem)
		}

		// CT series in the registered frame that no registered structure
		// set already claimed.
		for _, s := range b.store.SeriesOf(rt.ModalityCT) {
			if len(s.Entries) == 0 || claimedSeries[s.SeriesUID] {
				continue
			}
			if imageFrame(s.Entries[0].Instance) == reg.SecondFrameOfReference {
				regItem.RegisteredCTSeries = append(regItem.RegisteredCTSeries, s)
			}
		}

		item.Registrations = append(item.Registrations, regItem)
	}
}

func (b *builder) findStructureSet(instanceUID string) *StructureSetItem {
	for _, e := range b.store.Find(rt.ModalityStructureSet) {
		ss := e.Instance.(*rt.StructureSet)
		if ss.Identity.InstanceUID != instanceUID {
			continue
		}
		return &StructureSetItem{
			Entry:        e,
			StructureSet: ss,
			ImageSeries:  b.resolveImageSeries(ss.FrameOfReferenceUID),
		}
	}
	return nil
}

// resolveImageSeries finds the image series a structure set was contoured
// on: the first CT series whose first instance shares the frame of
// reference, then MR, then PET. No match is a normal outcome, the images
// simply were not retrieved.
func (b *builder) resolveImageSeries(frame string) *collect.Series {
	if frame == "" {
		return nil
	}
	for _, modality := range []rt.Modality{rt.ModalityCT, rt.ModalityMR, rt.ModalityPET} {
		for _, s := range b.store.SeriesOf(modality) {
			if len(s.Entries) == 0 {
				continue
			}
			if imageFrame(s.Entries[0].Instance) == frame {
				series := s
				return &series
			}
		}
	}
	return nil
}

// removeClaimedSeries drops every plan's own series and every structure-set
// series a plan (or its registrations) resolved, once each.
func (b *builder) removeClaimedSeries(plans []*PlanItem) {
	seen := make(map[string]bool)
	remove := func(seriesUID string) {
		if seriesUID == "" || seen[seriesUID] {
			return
		}
		seen[seriesUID] = true
		if err := b.store.RemoveSeries(seriesUID); err != nil {
			b.logger.Debug("Series already consumed", "series_uid", seriesUID)
		}
	}

	for _, p := range plans {
		remove(p.Plan.Identity.SeriesUID)
		if p.StructureSet != nil {
			remove(p.StructureSet.StructureSet.Identity.SeriesUID)
		}
		for _, reg := range p.Registrations {
			for _, ss := range reg.RegisteredStructureSets {
				remove(ss.StructureSet.Identity.SeriesUID)
			}
		}
	}
}

// finalize removes every instance the plan item claimed from the store.
func (b *builder) finalize(item *PlanItem) {
	var doomed []rt.Instance
	claim := func(entries []collect.Entry) {
		for _, e := range entries {
			doomed = append(doomed, e.Instance)
		}
	}

	doomed = append(doomed, item.Plan)
	for _, beam := range item.Beams {
		claim(beam.DRRImages)
		claim(beam.RTImages)
		claim(beam.TreatmentRecords)
	}
	if item.StructureSet != nil {
		doomed = append(doomed, item.StructureSet.StructureSet)
		if item.StructureSet.ImageSeries != nil {
			claim(item.StructureSet.ImageSeries.Entries)
		}
	}
	claim(item.Doses)
	for _, s := range item.ConeBeamSeries {
		claim(s.Entries)
	}
	for _, reg := range item.Registrations {
		doomed = append(doomed, reg.Registration)
		for _, ss := range reg.RegisteredStructureSets {
			doomed = append(doomed, ss.StructureSet)
			if ss.ImageSeries != nil {
				claim(ss.ImageSeries.Entries)
			}
		}
		for _, s := range reg.RegisteredCTSeries {
			claim(s.Entries)
		}
	}

	b.store.RemoveInstances(doomed)
}

// extractUnconnected exhausts the store: structure sets (each re-resolving
// its own image series), doses, registrations, treatment records, then the
// remaining image series by modality. Registrations extracted here stay
// flat, their nested structure sets only ever attach while a plan anchors
// them. Treatment records land here when their plan was never received or
// their referenced beam number matches no beam of a received plan.
func (b *builder) extractUnconnected(tree *Tree) {
	for _, e := range b.store.FindAndRemove(rt.ModalityStructureSet) {
		ss := e.Instance.(*rt.StructureSet)
		item := &StructureSetItem{
			Entry:        e,
			StructureSet: ss,
			ImageSeries:  b.resolveImageSeries(ss.FrameOfReferenceUID),
		}
		if item.ImageSeries != nil {
			var images []rt.Instance
			for _, ie := range item.ImageSeries.Entries {
				images = append(images, ie.Instance)
			}
			b.store.RemoveInstances(images)
		}
		tree.StructureSets = append(tree.StructureSets, item)
	}

	tree.Doses = b.store.FindAndRemove(rt.ModalityDose)
	tree.Registrations = b.store.FindAndRemove(rt.ModalityRegistration)
	tree.TreatmentRecords = b.store.FindAndRemove(rt.ModalityTreatmentRecord)

	for _, s := range b.store.SeriesOf(rt.ModalityRTImage) {
		if claimed, err := b.store.ClaimSeries(s.SeriesUID); err == nil && claimed != nil {
			tree.RTImageSeries = append(tree.RTImageSeries, *claimed)
		}
	}

	for _, s := range b.store.SeriesOf(rt.ModalityCT) {
		claimed, err := b.store.ClaimSeries(s.SeriesUID)
		if err != nil || claimed == nil || len(claimed.Entries) == 0 {
			continue
		}
		if _, ok := claimed.Entries[0].Instance.(*rt.ConeBeamCTImage); ok {
			tree.ConeBeamSeries = append(tree.ConeBeamSeries, *claimed)
		} else {
			tree.CTSeries = append(tree.CTSeries, *claimed)
		}
	}

	for _, s := range b.store.SeriesOf(rt.ModalityMR) {
		if claimed, err := b.store.ClaimSeries(s.SeriesUID); err == nil && claimed != nil {
			tree.MRSeries = append(tree.MRSeries, *claimed)
		}
	}
	for _, s := range b.store.SeriesOf(rt.ModalityPET) {
		if claimed, err := b.store.ClaimSeries(s.SeriesUID); err == nil && claimed != nil {
			tree.PETSeries = append(tree.PETSeries, *claimed)
		}
	}

	if left := b.store.Len(); left > 0 {
		b.logger.Warn("Instances left unextracted after tree build", "count", left)
	}
}

func imageFrame(i rt.Instance) string {
	switch v := i.(type) {
	case *rt.CTImage:
		return v.FrameOfReferenceUID
	case *rt.ConeBeamCTImage:
		return v.FrameOfReferenceUID
	case *rt.MRImage:
		return v.FrameOfReferenceUID
	case *rt.PETImage:
		return v.FrameOfReferenceUID
	default:
		return ""
	}
}
