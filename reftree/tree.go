// Package reftree reconstructs the clinical hierarchy from a flat collected
// working set: plan to beams, images and records, plan to structure set to
// image series, plan to doses and registrations. Everything not reachable
// from a plan is extracted into flat unconnected lists, so the tree is a
// complete partition of the input.
package reftree

import (
	"fmt"
	"io"

	"github.com/oncobeam/rtflow/collect"
	"github.com/oncobeam/rtflow/rt"
)

// Tree is the built hierarchy for one patient plus everything that could not
// be attached to any plan.
type Tree struct {
	PatientID string
	Plans     []*PlanItem

	// Unconnected leftovers, by modality.
	StructureSets    []*StructureSetItem
	Doses            []collect.Entry
	Registrations    []collect.Entry
	TreatmentRecords []collect.Entry
	RTImageSeries    []collect.Series
	ConeBeamSeries   []collect.Series
	CTSeries         []collect.Series
	MRSeries         []collect.Series
	PETSeries        []collect.Series
}

// PlanItem anchors one plan and its claimed sub-structure.
type PlanItem struct {
	Entry collect.Entry
	Plan  *rt.Plan

	Beams          []*BeamItem
	StructureSet   *StructureSetItem // nil when referenced but not received
	Doses          []collect.Entry
	ConeBeamSeries []collect.Series
	Registrations  []*RegistrationItem
}

// BeamItem groups the images and records belonging to one beam of a plan.
type BeamItem struct {
	Beam rt.Beam

	DRRImages        []collect.Entry
	RTImages         []collect.Entry
	TreatmentRecords []collect.Entry // ascending by current fraction number
}

// StructureSetItem is a structure set plus its resolved image series, when
// the images were retrieved.
type StructureSetItem struct {
	Entry        collect.Entry
	StructureSet *rt.StructureSet
	ImageSeries  *collect.Series // nil when no matching series was received
}

// RegistrationItem is a registration plus the structure sets and image
// series that share its second frame of reference.
type RegistrationItem struct {
	Entry        collect.Entry
	Registration *rt.Registration

	RegisteredStructureSets []*StructureSetItem
	RegisteredCTSeries      []collect.Series
}

// Dump writes a human-readable indented rendering of the tree, used as the
// diagnostic tree dump next to an export.
func (t *Tree) Dump(w io.Writer) {
	fmt.Fprintf(w, "patient %s\n", t.PatientID)
	for _, plan := range t.Plans {
		fmt.Fprintf(w, "  plan %s\n", rt.Describe(plan.Plan))
		if plan.StructureSet != nil {
			dumpStructureSet(w, plan.StructureSet, "    ")
		}
		for _, beam := range plan.Beams {
			fmt.Fprintf(w, "    beam %d %q\n", beam.Beam.Number, beam.Beam.Name)
			for _, e := range beam.DRRImages {
				fmt.Fprintf(w, "      drr %s\n", rt.Describe(e.Instance))
			}
			for _, e := range beam.RTImages {
				fmt.Fprintf(w, "      image %s\n", rt.Describe(e.Instance))
			}
			for _, e := range beam.TreatmentRecords {
				fmt.Fprintf(w, "      record %s\n", rt.Describe(e.Instance))
			}
		}
		for _, e := range plan.Doses {
			fmt.Fprintf(w, "    dose %s\n", rt.Describe(e.Instance))
		}
		for _, s := range plan.ConeBeamSeries {
			fmt.Fprintf(w, "    cbct series %s (%d instances)\n", s.SeriesUID, len(s.Entries))
		}
		for _, reg := range plan.Registrations {
			fmt.Fprintf(w, "    registration %s\n", rt.Describe(reg.Registration))
			for _, ss := range reg.RegisteredStructureSets {
				dumpStructureSet(w, ss, "      ")
			}
			for _, s := range reg.RegisteredCTSeries {
				fmt.Fprintf(w, "      ct series %s (%d instances)\n", s.SeriesUID, len(s.Entries))
			}
		}
	}

	dumpUnconnected(w, t)
}

func dumpStructureSet(w io.Writer, item *StructureSetItem, indent string) {
	fmt.Fprintf(w, "%sstructure set %s\n", indent, rt.Describe(item.StructureSet))
	if item.ImageSeries != nil {
		fmt.Fprintf(w, "%s  %s series %s (%d instances)\n",
			indent, item.ImageSeries.Modality, item.ImageSeries.SeriesUID, len(item.ImageSeries.Entries))
	}
}

func dumpUnconnected(w io.Writer, t *Tree) {
	for _, ss := range t.StructureSets {
		fmt.Fprintf(w, "  unconnected ")
		dumpStructureSet(w, ss, "")
	}
	for _, e := range t.Doses {
		fmt.Fprintf(w, "  unconnected dose %s\n", rt.Describe(e.Instance))
	}
	for _, e := range t.Registrations {
		fmt.Fprintf(w, "  unconnected registration %s\n", rt.Describe(e.Instance))
	}
	for _, e := range t.TreatmentRecords {
		fmt.Fprintf(w, "  unconnected record %s\n", rt.Describe(e.Instance))
	}
	for _, group := range []struct {
		name   string
		series []collect.Series
	}{
		{"rtimage", t.RTImageSeries},
		{"cbct", t.ConeBeamSeries},
		{"ct", t.CTSeries},
		{"mr", t.MRSeries},
		{"pet", t.PETSeries},
	} {
		for _, s := range group.series {
			fmt.Fprintf(w, "  unconnected %s series %s (%d instances)\n", group.name, s.SeriesUID, len(s.Entries))
		}
	}
}
