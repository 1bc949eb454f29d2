// Package rt models the radiotherapy DICOM object family: plans, structure
// sets, doses, images, registrations and treatment records, classified from
// parsed datasets into typed instances that carry their clinical
// cross-references.
package rt

import (
	"github.com/oncobeam/rtflow/types"
)

// Modality identifies which member of the RT object family an instance is.
type Modality int

const (
	ModalityUnknown Modality = iota
	ModalityPlan
	ModalityStructureSet
	ModalityDose
	ModalityCT
	ModalityPET
	ModalityMR
	ModalityRTImage
	ModalityRegistration
	ModalityTreatmentRecord
)

func (m Modality) String() string {
	switch m {
	case ModalityPlan:
		return "RTPLAN"
	case ModalityStructureSet:
		return "RTSTRUCT"
	case ModalityDose:
		return "RTDOSE"
	case ModalityCT:
		return "CT"
	case ModalityPET:
		return "PT"
	case ModalityMR:
		return "MR"
	case ModalityRTImage:
		return "RTIMAGE"
	case ModalityRegistration:
		return "REG"
	case ModalityTreatmentRecord:
		return "RTRECORD"
	default:
		return "UNKNOWN"
	}
}

// FilePrefix returns the short prefix used when naming exported files for
// instances of this modality.
func (m Modality) FilePrefix() string {
	switch m {
	case ModalityPlan:
		return "RP"
	case ModalityStructureSet:
		return "RS"
	case ModalityDose:
		return "RD"
	case ModalityCT:
		return "CT"
	case ModalityPET:
		return "PT"
	case ModalityMR:
		return "MR"
	case ModalityRTImage:
		return "RI"
	case ModalityRegistration:
		return "RE"
	case ModalityTreatmentRecord:
		return "RT"
	default:
		return "XX"
	}
}

// ModalityFromSOPClass maps a SOP Class UID to a modality. The Varian private
// RT Plan UID maps to ModalityPlan like the standard one. Unrecognized UIDs
// map to ModalityUnknown rather than failing.
func ModalityFromSOPClass(sopClassUID string) Modality {
	switch sopClassUID {
	case types.RTPlanStorage, types.RTIonPlanStorage, types.VarianRTPlanStorage:
		return ModalityPlan
	case types.RTStructureSetStorage:
		return ModalityStructureSet
	case types.RTDoseStorage:
		return ModalityDose
	case types.CTImageStorage, types.EnhancedCTImageStorage:
		return ModalityCT
	case types.PETImageStorage, types.EnhancedPETImageStorage:
		return ModalityPET
	case types.MRImageStorage, types.EnhancedMRImageStorage:
		return ModalityMR
	case types.RTImageStorage:
		return ModalityRTImage
	case types.SpatialRegistrationStorage, types.DeformableSpatialRegistrationStorage:
		return ModalityRegistration
	case types.RTBeamsTreatmentRecordStorage, types.RTIonBeamsTreatmentRecordStorage:
		return ModalityTreatmentRecord
	default:
		return ModalityUnknown
	}
}

// ModalityFromCode maps a DICOM modality code (0008,0060) to a modality.
func ModalityFromCode(code string) Modality {
	switch code {
	case "RTPLAN":
		return ModalityPlan
	case "RTSTRUCT":
		return ModalityStructureSet
	case "RTDOSE":
		return ModalityDose
	case "CT":
		return ModalityCT
	case "PT":
		return ModalityPET
	case "MR":
		return ModalityMR
	case "RTIMAGE":
		return ModalityRTImage
	case "REG":
		return ModalityRegistration
	case "RTRECORD":
		return ModalityTreatmentRecord
	default:
		return ModalityUnknown
	}
}
