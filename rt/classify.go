package rt

import (
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/oncobeam/rtflow/errors"
)

// Classify maps a parsed dataset to its typed RT instance. The SOP Class UID
// selects the variant; datasets outside the RT family or missing identity
// tags raise a classification error rather than being skipped, since every
// received object has to land somewhere in the clinical hierarchy.
func Classify(ds *dicom.Dataset) (Instance, error) {
	sopClass, ok := findString(ds, tag.SOPClassUID)
	if !ok {
		return nil, errors.NewClassificationError("", "SOPClassUID", "dataset has no SOP class")
	}

	core, err := extractCore(ds, sopClass)
	if err != nil {
		return nil, err
	}

	switch ModalityFromSOPClass(sopClass) {
	case ModalityPlan:
		return classifyPlan(ds, core), nil
	case ModalityStructureSet:
		return classifyStructureSet(ds, core), nil
	case ModalityDose:
		return classifyDose(ds, core), nil
	case ModalityCT:
		return classifyCT(ds, core), nil
	case ModalityMR:
		return &MRImage{Identity: core, ImageType: imageType(ds), FrameOfReferenceUID: frameOfReference(ds)}, nil
	case ModalityPET:
		return &PETImage{Identity: core, ImageType: imageType(ds), FrameOfReferenceUID: frameOfReference(ds)}, nil
	case ModalityRTImage:
		return classifyRTImage(ds, core), nil
	case ModalityRegistration:
		return classifyRegistration(ds, core), nil
	case ModalityTreatmentRecord:
		return classifyTreatmentRecord(ds, core), nil
	default:
		return nil, errors.NewClassificationError(sopClass, "", "SOP class is not an RT family member")
	}
}

func extractCore(ds *dicom.Dataset, sopClass string) (Core, error) {
	instanceUID, ok := findString(ds, tag.SOPInstanceUID)
	if !ok {
		return Core{}, errors.NewClassificationError(sopClass, "SOPInstanceUID", "dataset has no SOP instance UID")
	}
	studyUID, ok := findString(ds, tag.StudyInstanceUID)
	if !ok {
		return Core{}, errors.NewClassificationError(sopClass, "StudyInstanceUID", "dataset has no study UID")
	}
	seriesUID, ok := findString(ds, tag.SeriesInstanceUID)
	if !ok {
		return Core{}, errors.NewClassificationError(sopClass, "SeriesInstanceUID", "dataset has no series UID")
	}
	patientID, _ := findString(ds, tag.PatientID)

	return Core{
		PatientID:   patientID,
		InstanceUID: instanceUID,
		StudyUID:    studyUID,
		SeriesUID:   seriesUID,
	}, nil
}

func classifyPlan(ds *dicom.Dataset, core Core) *Plan {
	p := &Plan{Identity: core}
	p.PlanLabel, _ = findString(ds, tagRTPlanLabel)
	p.PlanIntent, _ = findString(ds, tagPlanIntent)

	if status, ok := findString(ds, tagApprovalStatus); ok {
		p.Approval = ApprovalStatusFromCode(status)
	}

	if items := findSequence(ds, tagReferencedStructureSetSequence); len(items) > 0 {
		if uid, ok := itemString(items[0], tagReferencedSOPInstanceUID); ok {
			p.StructureSet = &InstanceReference{Modality: ModalityStructureSet, InstanceUID: uid}
		}
	}

	p.Manufacturer, _ = findString(ds, tag.Manufacturer)
	p.Model, _ = findString(ds, tag.ManufacturerModelName)

	for _, item := range findSequence(ds, tagBeamSequence) {
		beam := Beam{Number: -1}
		beam.Name, _ = itemString(item, tagBeamName)
		if n, ok := itemInt(item, tagBeamNumber); ok {
			beam.Number = n
		}
		beam.DeliveryType, _ = itemString(item, tagTreatmentDeliveryType)
		beam.TreatmentMachineName, _ = itemString(item, tagTreatmentMachineName)

		for _, ref := range itemSequence(item, tagReferencedReferenceImageSequence) {
			if uid, ok := itemString(ref, tagReferencedSOPInstanceUID); ok {
				beam.DRRReferences = append(beam.DRRReferences, InstanceReference{
					Modality:    ModalityRTImage,
					InstanceUID: uid,
				})
			}
		}

		if p.MachineName == "" {
			p.MachineName = beam.TreatmentMachineName
		}
		p.Beams = append(p.Beams, beam)
	}

	return p
}

func classifyStructureSet(ds *dicom.Dataset, core Core) *StructureSet {
	s := &StructureSet{Identity: core}
	s.SetLabel, _ = findString(ds, tagStructureSetLabel)

	s.FrameOfReferenceUID = frameOfReference(ds)
	if s.FrameOfReferenceUID == "" {
		if items := findSequence(ds, tagReferencedFrameOfReferenceSequence); len(items) > 0 {
			s.FrameOfReferenceUID, _ = itemString(items[0], tag.FrameOfReferenceUID)
		}
	}

	// Every image referenced by any contour of any ROI, deduplicated.
	seen := make(map[InstanceReference]bool)
	for _, roi := range findSequence(ds, tagROIContourSequence) {
		for _, contour := range itemSequence(roi, tagContourSequence) {
			for _, img := range itemSequence(contour, tagContourImageSequence) {
				uid, ok := itemString(img, tagReferencedSOPInstanceUID)
				if !ok {
					continue
				}
				modality := ModalityCT
				if class, ok := itemString(img, tagReferencedSOPClassUID); ok {
					if m := ModalityFromSOPClass(class); m != ModalityUnknown {
						modality = m
					}
				}
				ref := InstanceReference{Modality: modality, InstanceUID: uid}
				if !seen[ref] {
					seen[ref] = true
					s.ReferencedImages = append(s.ReferencedImages, ref)
				}
			}
		}
	}

	return s
}

func classifyDose(ds *dicom.Dataset, core Core) *Dose {
	d := &Dose{Identity: core}
	d.SummationType, _ = findString(ds, tagDoseSummationType)

	if items := findSequence(ds, tagReferencedRTPlanSequence); len(items) > 0 {
		if uid, ok := itemString(items[0], tagReferencedSOPInstanceUID); ok {
			d.Plan = &InstanceReference{Modality: ModalityPlan, InstanceUID: uid}
		}
	}
	if items := findSequence(ds, tagReferencedStructureSetSequence); len(items) > 0 {
		if uid, ok := itemString(items[0], tagReferencedSOPInstanceUID); ok {
			d.StructureSet = &InstanceReference{Modality: ModalityStructureSet, InstanceUID: uid}
		}
	}

	return d
}

// classifyCT returns a ConeBeamCTImage when the slice carries a referenced
// instance whose SOP class is a plan, a plain CTImage otherwise.
func classifyCT(ds *dicom.Dataset, core Core) Instance {
	types := imageType(ds)
	frame := frameOfReference(ds)

	for _, item := range findSequence(ds, tagReferencedInstanceSequence) {
		class, ok := itemString(item, tagReferencedSOPClassUID)
		if !ok || ModalityFromSOPClass(class) != ModalityPlan {
			continue
		}
		if uid, ok := itemString(item, tagReferencedSOPInstanceUID); ok {
			return &ConeBeamCTImage{
				Identity:            core,
				ImageType:           types,
				FrameOfReferenceUID: frame,
				Plan:                InstanceReference{Modality: ModalityPlan, InstanceUID: uid},
			}
		}
	}

	return &CTImage{Identity: core, ImageType: types, FrameOfReferenceUID: frame}
}

func classifyRTImage(ds *dicom.Dataset, core Core) *RTImage {
	i := &RTImage{Identity: core, ReferencedBeamNumber: -1}
	i.ImageLabel, _ = findString(ds, tagRTImageLabel)
	i.InstanceNumber, _ = findInt(ds, tag.InstanceNumber)

	if items := findSequence(ds, tagReferencedRTPlanSequence); len(items) > 0 {
		if uid, ok := itemString(items[0], tagReferencedSOPInstanceUID); ok {
			i.Plan = &InstanceReference{Modality: ModalityPlan, InstanceUID: uid}
		}
	}
	if n, ok := findInt(ds, tagReferencedBeamNumber); ok {
		i.ReferencedBeamNumber = n
	}

	return i
}

func classifyRegistration(ds *dicom.Dataset, core Core) *Registration {
	r := &Registration{Identity: core}
	r.RegLabel, _ = findString(ds, tagContentLabel)
	r.FrameOfReference = frameOfReference(ds)

	// The second frame is the first one inside the registration sequence
	// that differs from the registration's own frame.
	for _, item := range findSequence(ds, tagRegistrationSequence) {
		frame, ok := itemString(item, tag.FrameOfReferenceUID)
		if ok && frame != r.FrameOfReference {
			r.SecondFrameOfReference = frame
			break
		}
	}

	return r
}

func classifyTreatmentRecord(ds *dicom.Dataset, core Core) *TreatmentRecord {
	t := &TreatmentRecord{Identity: core, ReferencedBeamNumber: -1}

	if items := findSequence(ds, tagReferencedRTPlanSequence); len(items) > 0 {
		if uid, ok := itemString(items[0], tagReferencedSOPInstanceUID); ok {
			t.Plan = InstanceReference{Modality: ModalityPlan, InstanceUID: uid}
		}
	}

	if items := findSequence(ds, tagTreatmentSessionBeamSequence); len(items) > 0 {
		session := items[0]
		if n, ok := itemInt(session, tagReferencedBeamNumber); ok {
			t.ReferencedBeamNumber = n
		}
		t.BeamName, _ = itemString(session, tagBeamName)
		t.CurrentFractionNumber, _ = itemInt(session, tagCurrentFractionNumber)
	}
	if t.CurrentFractionNumber == 0 {
		t.CurrentFractionNumber, _ = findInt(ds, tagCurrentFractionNumber)
	}

	return t
}

func imageType(ds *dicom.Dataset) []string {
	v, _ := findStrings(ds, tag.ImageType)
	return v
}

func frameOfReference(ds *dicom.Dataset) string {
	v, _ := findString(ds, tag.FrameOfReferenceUID)
	return v
}
