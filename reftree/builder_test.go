package reftree

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncobeam/rtflow/collect"
	"github.com/oncobeam/rtflow/rt"
)

func core(instanceUID, seriesUID string) rt.Core {
	return rt.Core{
		PatientID:   "PAT001",
		InstanceUID: instanceUID,
		StudyUID:    "study-1",
		SeriesUID:   seriesUID,
	}
}

func newPlan(uid, seriesUID, label string, beams ...rt.Beam) *rt.Plan {
	return &rt.Plan{
		Identity:     core(uid, seriesUID),
		PlanLabel:    label,
		Approval:     rt.ApprovalApproved,
		Manufacturer: "Varian Medical Systems",
		Beams:        beams,
	}
}

func newStructureSet(uid, seriesUID, frame string) *rt.StructureSet {
	return &rt.StructureSet{
		Identity:            core(uid, seriesUID),
		SetLabel:            "SS " + uid,
		FrameOfReferenceUID: frame,
	}
}

func newDose(uid, seriesUID, planUID string) *rt.Dose {
	d := &rt.Dose{Identity: core(uid, seriesUID), SummationType: "PLAN"}
	if planUID != "" {
		d.Plan = &rt.InstanceReference{Modality: rt.ModalityPlan, InstanceUID: planUID}
	}
	return d
}

func newCT(uid, seriesUID, frame string) *rt.CTImage {
	return &rt.CTImage{Identity: core(uid, seriesUID), FrameOfReferenceUID: frame}
}

func newCBCT(uid, seriesUID, frame, planUID string) *rt.ConeBeamCTImage {
	return &rt.ConeBeamCTImage{
		Identity:            core(uid, seriesUID),
		FrameOfReferenceUID: frame,
		Plan:                rt.InstanceReference{Modality: rt.ModalityPlan, InstanceUID: planUID},
	}
}

func newRTImage(uid, seriesUID, planUID string, beamNumber int) *rt.RTImage {
	img := &rt.RTImage{Identity: core(uid, seriesUID), ImageLabel: "img " + uid, ReferencedBeamNumber: beamNumber}
	if planUID != "" {
		img.Plan = &rt.InstanceReference{Modality: rt.ModalityPlan, InstanceUID: planUID}
	}
	return img
}

func newRecord(uid, seriesUID, planUID string, beamNumber, fraction int) *rt.TreatmentRecord {
	return &rt.TreatmentRecord{
		Identity:              core(uid, seriesUID),
		Plan:                  rt.InstanceReference{Modality: rt.ModalityPlan, InstanceUID: planUID},
		ReferencedBeamNumber:  beamNumber,
		CurrentFractionNumber: fraction,
	}
}

func newRegistration(uid, seriesUID, frame, secondFrame string) *rt.Registration {
	return &rt.Registration{
		Identity:               core(uid, seriesUID),
		RegLabel:               "reg " + uid,
		FrameOfReference:       frame,
		SecondFrameOfReference: secondFrame,
	}
}

// fixture is a reproducible flat instance set, used to rebuild identical
// stores for the idempotence test.
type fixture []rt.Instance

func (f fixture) store() *collect.Store {
	s := collect.NewStore("PAT001")
	for i, inst := range f {
		s.Add(inst, fmt.Sprintf("/tmp/f%d.dcm", i))
	}
	return s
}

func fullFixture() fixture {
	planRef := &rt.InstanceReference{Modality: rt.ModalityStructureSet, InstanceUID: "ss-1"}
	plan := newPlan("plan-1", "series-plan", "Prostate",
		rt.Beam{Number: 1, Name: "CW", DRRReferences: []rt.InstanceReference{
			{Modality: rt.ModalityRTImage, InstanceUID: "ri-drr"},
		}},
		rt.Beam{Number: 2, Name: "CCW"},
	)
	plan.StructureSet = planRef

	return fixture{
		plan,
		newStructureSet("ss-1", "series-ss", "frame-A"),
		newCT("ct-1", "series-ct", "frame-A"),
		newCT("ct-2", "series-ct", "frame-A"),
		newDose("rd-1", "series-rd", "plan-1"),
		// DRR for beam 1; its beam number ALSO matches beam 1.
		newRTImage("ri-drr", "series-ri", "plan-1", 1),
		newRTImage("ri-b1", "series-ri", "plan-1", 1),
		newRTImage("ri-b2", "series-ri", "plan-1", 2),
		newRecord("tr-3", "series-tr", "plan-1", 1, 3),
		newRecord("tr-1", "series-tr", "plan-1", 1, 1),
		newRecord("tr-2", "series-tr", "plan-1", 1, 2),
		newCBCT("cb-1", "series-cbct", "frame-C", "plan-1"),
		newRegistration("reg-1", "series-reg", "frame-A", "frame-B"),
		newStructureSet("ss-2", "series-ss2", "frame-B"),
		newCT("ct-9", "series-ct2", "frame-B"),
		// Unconnected leftovers.
		newDose("rd-orphan", "series-rd2", "plan-unknown"),
		newCT("ct-stray", "series-ct3", "frame-Z"),
		// Record of a plan that was never received, and a record whose beam
		// number matches no beam of plan-1.
		newRecord("tr-orphan", "series-tr2", "plan-unknown", 1, 1),
		newRecord("tr-beamless", "series-tr", "plan-1", 9, 1),
	}
}

func TestBuild_PlanStructure(t *testing.T) {
	tree := Build(fullFixture().store(), nil)

	require.Len(t, tree.Plans, 1)
	plan := tree.Plans[0]
	assert.Equal(t, "Prostate", plan.Plan.Label())

	require.NotNil(t, plan.StructureSet)
	assert.Equal(t, "ss-1", plan.StructureSet.StructureSet.Identity.InstanceUID)
	require.NotNil(t, plan.StructureSet.ImageSeries)
	assert.Equal(t, "series-ct", plan.StructureSet.ImageSeries.SeriesUID)
	assert.Len(t, plan.StructureSet.ImageSeries.Entries, 2)

	require.Len(t, plan.Doses, 1)
	assert.Equal(t, "rd-1", plan.Doses[0].Instance.Core().InstanceUID)

	require.Len(t, plan.ConeBeamSeries, 1)
	assert.Equal(t, "series-cbct", plan.ConeBeamSeries[0].SeriesUID)

	require.Len(t, plan.Registrations, 1)
	reg := plan.Registrations[0]
	assert.Equal(t, "reg-1", reg.Registration.Identity.InstanceUID)
	require.Len(t, reg.RegisteredStructureSets, 1)
	assert.Equal(t, "ss-2", reg.RegisteredStructureSets[0].StructureSet.Identity.InstanceUID)
	require.NotNil(t, reg.RegisteredStructureSets[0].ImageSeries)
	assert.Equal(t, "series-ct2", reg.RegisteredStructureSets[0].ImageSeries.SeriesUID)
	// series-ct2 is claimed by ss-2, so no plain registered CT series remain.
	assert.Empty(t, reg.RegisteredCTSeries)
}

func TestBuild_DRRPrecedence(t *testing.T) {
	tree := Build(fullFixture().store(), nil)

	require.Len(t, tree.Plans, 1)
	beams := tree.Plans[0].Beams
	require.Len(t, beams, 2)

	beam1 := beams[0]
	require.Len(t, beam1.DRRImages, 1)
	assert.Equal(t, "ri-drr", beam1.DRRImages[0].Instance.Core().InstanceUID)

	// ri-drr's beam number also matches beam 1, but it must never appear
	// in the plain image list.
	require.Len(t, beam1.RTImages, 1)
	assert.Equal(t, "ri-b1", beam1.RTImages[0].Instance.Core().InstanceUID)

	beam2 := beams[1]
	require.Len(t, beam2.RTImages, 1)
	assert.Equal(t, "ri-b2", beam2.RTImages[0].Instance.Core().InstanceUID)
}

func TestBuild_TreatmentRecordOrdering(t *testing.T) {
	tree := Build(fullFixture().store(), nil)

	records := tree.Plans[0].Beams[0].TreatmentRecords
	require.Len(t, records, 3)
	for i := 0; i < len(records)-1; i++ {
		a := records[i].Instance.(*rt.TreatmentRecord)
		b := records[i+1].Instance.(*rt.TreatmentRecord)
		assert.Less(t, a.CurrentFractionNumber, b.CurrentFractionNumber)
	}
}

func TestBuild_MissingStructureSetStillEmitsPlan(t *testing.T) {
	plan := newPlan("plan-1", "series-plan", "NoSS")
	plan.StructureSet = &rt.InstanceReference{Modality: rt.ModalityStructureSet, InstanceUID: "ss-missing"}

	store := collect.NewStore("PAT001")
	store.Add(plan, "/tmp/rp.dcm")

	tree := Build(store, nil)

	require.Len(t, tree.Plans, 1)
	assert.Nil(t, tree.Plans[0].StructureSet)
	// The missing UID appears nowhere else in the output.
	assert.Empty(t, tree.StructureSets)
}

func TestBuild_UnconnectedExtraction(t *testing.T) {
	tree := Build(fullFixture().store(), nil)

	require.Len(t, tree.Doses, 1)
	assert.Equal(t, "rd-orphan", tree.Doses[0].Instance.Core().InstanceUID)

	require.Len(t, tree.CTSeries, 1)
	assert.Equal(t, "series-ct3", tree.CTSeries[0].SeriesUID)

	require.Len(t, tree.TreatmentRecords, 2)
	records := make(map[string]bool)
	for _, e := range tree.TreatmentRecords {
		records[e.Instance.Core().InstanceUID] = true
	}
	assert.True(t, records["tr-orphan"])
	assert.True(t, records["tr-beamless"])

	assert.Empty(t, tree.StructureSets)
	assert.Empty(t, tree.Registrations)
	assert.Empty(t, tree.ConeBeamSeries)
}

func TestBuild_UnmatchedTreatmentRecordsRetained(t *testing.T) {
	store := collect.NewStore("PAT001")
	store.Add(newPlan("plan-1", "series-rp", "Plan 1", rt.Beam{Number: 1, Name: "CW"}), "")
	// References a plan that never arrived.
	store.Add(newRecord("tr-orphan", "series-tr", "plan-missing", 1, 1), "")
	// References plan-1 but a beam number it does not have.
	store.Add(newRecord("tr-beamless", "series-tr", "plan-1", 7, 1), "")

	tree := Build(store, nil)

	require.Len(t, tree.Plans, 1)
	assert.Empty(t, tree.Plans[0].Beams[0].TreatmentRecords)

	require.Len(t, tree.TreatmentRecords, 2)
	records := make(map[string]bool)
	for _, e := range tree.TreatmentRecords {
		records[e.Instance.Core().InstanceUID] = true
	}
	assert.True(t, records["tr-orphan"])
	assert.True(t, records["tr-beamless"])
	// Nothing may be left behind in the store.
	assert.Zero(t, store.Len())
}

func TestBuild_OrphanStructureSetResolvesOwnImages(t *testing.T) {
	store := collect.NewStore("PAT001")
	store.Add(newStructureSet("ss-alone", "series-ss", "frame-X"), "")
	store.Add(newCT("ct-1", "series-ct", "frame-X"), "")
	store.Add(newCT("ct-2", "series-ct", "frame-X"), "")

	tree := Build(store, nil)

	assert.Empty(t, tree.Plans)
	require.Len(t, tree.StructureSets, 1)
	item := tree.StructureSets[0]
	require.NotNil(t, item.ImageSeries)
	assert.Equal(t, "series-ct", item.ImageSeries.SeriesUID)
	// The claimed series must not reappear as an unconnected CT series.
	assert.Empty(t, tree.CTSeries)
}

func TestBuild_ImageSeriesPrecedenceCTBeforeMR(t *testing.T) {
	store := collect.NewStore("PAT001")
	store.Add(newStructureSet("ss-1", "series-ss", "frame-X"), "")
	store.Add(&rt.MRImage{Identity: core("mr-1", "series-mr"), FrameOfReferenceUID: "frame-X"}, "")
	store.Add(newCT("ct-1", "series-ct", "frame-X"), "")

	tree := Build(store, nil)

	require.Len(t, tree.StructureSets, 1)
	require.NotNil(t, tree.StructureSets[0].ImageSeries)
	assert.Equal(t, rt.ModalityCT, tree.StructureSets[0].ImageSeries.Modality)
	// The MR series stays unconnected.
	require.Len(t, tree.MRSeries, 1)
}

func collectUIDs(tree *Tree) map[string]int {
	counts := make(map[string]int)
	add := func(entries []collect.Entry) {
		for _, e := range entries {
			counts[e.Instance.Core().InstanceUID]++
		}
	}
	addSeries := func(series []collect.Series) {
		for _, s := range series {
			add(s.Entries)
		}
	}
	addSS := func(items []*StructureSetItem) {
		for _, item := range items {
			counts[item.StructureSet.Identity.InstanceUID]++
			if item.ImageSeries != nil {
				add(item.ImageSeries.Entries)
			}
		}
	}

	for _, plan := range tree.Plans {
		counts[plan.Plan.Identity.InstanceUID]++
		for _, beam := range plan.Beams {
			add(beam.DRRImages)
			add(beam.RTImages)
			add(beam.TreatmentRecords)
		}
		if plan.StructureSet != nil {
			addSS([]*StructureSetItem{plan.StructureSet})
		}
		add(plan.Doses)
		addSeries(plan.ConeBeamSeries)
		for _, reg := range plan.Registrations {
			counts[reg.Registration.Identity.InstanceUID]++
			addSS(reg.RegisteredStructureSets)
			addSeries(reg.RegisteredCTSeries)
		}
	}
	addSS(tree.StructureSets)
	add(tree.Doses)
	add(tree.Registrations)
	add(tree.TreatmentRecords)
	addSeries(tree.RTImageSeries)
	addSeries(tree.ConeBeamSeries)
	addSeries(tree.CTSeries)
	addSeries(tree.MRSeries)
	addSeries(tree.PETSeries)
	return counts
}

func TestBuild_PartitionCompleteness(t *testing.T) {
	f := fullFixture()
	tree := Build(f.store(), nil)

	counts := collectUIDs(tree)
	for _, inst := range f {
		uid := inst.Core().InstanceUID
		assert.Equal(t, 1, counts[uid], "instance %s must appear exactly once", uid)
	}
	assert.Len(t, counts, len(f))
}

func TestBuild_Idempotence(t *testing.T) {
	f := fullFixture()

	first := Build(f.store(), nil)
	second := Build(f.store(), nil)

	assert.Equal(t, collectUIDs(first), collectUIDs(second))
	require.Equal(t, len(first.Plans), len(second.Plans))
	for i := range first.Plans {
		assert.Equal(t, len(first.Plans[i].Beams), len(second.Plans[i].Beams))
		assert.Equal(t, len(first.Plans[i].Doses), len(second.Plans[i].Doses))
		assert.Equal(t, len(first.Plans[i].Registrations), len(second.Plans[i].Registrations))
	}
}

func TestTree_Dump(t *testing.T) {
	tree := Build(fullFixture().store(), nil)

	var buf bytes.Buffer
	tree.Dump(&buf)

	out := buf.String()
	assert.Contains(t, out, "patient PAT001")
	assert.Contains(t, out, "Prostate")
	assert.Contains(t, out, "structure set")
	assert.Contains(t, out, "cbct series series-cbct")
	assert.Contains(t, out, "unconnected dose")
}
