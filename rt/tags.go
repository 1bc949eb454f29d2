package rt

import "github.com/suyashkumar/dicom/pkg/tag"

// RT-specific tags not covered by the named constants in pkg/tag.
var (
	// RT General / Approval
	tagApprovalStatus = tag.Tag{Group: 0x300E, Element: 0x0002}

	// RT Plan (300A) and references (300C)
	tagRTPlanLabel                      = tag.Tag{Group: 0x300A, Element: 0x0002}
	tagPlanIntent                       = tag.Tag{Group: 0x300A, Element: 0x000A}
	tagBeamSequence                     = tag.Tag{Group: 0x300A, Element: 0x00B0}
	tagTreatmentMachineName             = tag.Tag{Group: 0x300A, Element: 0x00B2}
	tagBeamNumber                       = tag.Tag{Group: 0x300A, Element: 0x00C0}
	tagBeamName                         = tag.Tag{Group: 0x300A, Element: 0x00C2}
	tagTreatmentDeliveryType            = tag.Tag{Group: 0x300A, Element: 0x00CE}
	tagReferencedRTPlanSequence         = tag.Tag{Group: 0x300C, Element: 0x0002}
	tagReferencedBeamNumber             = tag.Tag{Group: 0x300C, Element: 0x0006}
	tagReferencedReferenceImageSequence = tag.Tag{Group: 0x300C, Element: 0x0042}
	tagReferencedStructureSetSequence   = tag.Tag{Group: 0x300C, Element: 0x0060}

	// RT Structure Set (3006)
	tagStructureSetLabel                  = tag.Tag{Group: 0x3006, Element: 0x0002}
	tagReferencedFrameOfReferenceSequence = tag.Tag{Group: 0x3006, Element: 0x0010}
	tagContourImageSequence               = tag.Tag{Group: 0x3006, Element: 0x0016}
	tagROIContourSequence                 = tag.Tag{Group: 0x3006, Element: 0x0039}
	tagContourSequence                    = tag.Tag{Group: 0x3006, Element: 0x0040}

	// RT Dose (3004)
	tagDoseSummationType = tag.Tag{Group: 0x3004, Element: 0x000A}

	// RT Image (3002)
	tagRTImageLabel = tag.Tag{Group: 0x3002, Element: 0x0002}

	// RT Treatment Record (3008)
	tagTreatmentSessionBeamSequence = tag.Tag{Group: 0x3008, Element: 0x0020}
	tagCurrentFractionNumber        = tag.Tag{Group: 0x3008, Element: 0x0022}

	// Spatial Registration (0070)
	tagRegistrationSequence = tag.Tag{Group: 0x0070, Element: 0x0308}
	tagContentLabel         = tag.Tag{Group: 0x0070, Element: 0x0080}

	// General references
	tagReferencedInstanceSequence = tag.Tag{Group: 0x0008, Element: 0x114A}
	tagReferencedSOPClassUID      = tag.Tag{Group: 0x0008, Element: 0x1150}
	tagReferencedSOPInstanceUID   = tag.Tag{Group: 0x0008, Element: 0x1155}
)
