package types

// DICOM Application Context UID
// The Application Context defines the DICOM application-level message exchange rules.
const ApplicationContextUID = "1.2.840.10008.3.1.1.1"

// Verification Service
const (
	VerificationSOPClass = "1.2.840.10008.1.1"
)

// Radiotherapy object family, DICOM Part 4, Annex B.
// This is the object family handled by this module: plans, structure sets,
// doses, treatment records, verification images and the image series they
// reference.
const (
	RTImageStorage                   = "1.2.840.10008.5.1.4.1.1.481.1"
	RTDoseStorage                    = "1.2.840.10008.5.1.4.1.1.481.2"
	RTStructureSetStorage            = "1.2.840.10008.5.1.4.1.1.481.3"
	RTBeamsTreatmentRecordStorage    = "1.2.840.10008.5.1.4.1.1.481.4"
	RTPlanStorage                    = "1.2.840.10008.5.1.4.1.1.481.5"
	RTBrachyTreatmentRecordStorage   = "1.2.840.10008.5.1.4.1.1.481.6"
	RTTreatmentSummaryRecordStorage  = "1.2.840.10008.5.1.4.1.1.481.7"
	RTIonPlanStorage                 = "1.2.840.10008.5.1.4.1.1.481.8"
	RTIonBeamsTreatmentRecordStorage = "1.2.840.10008.5.1.4.1.1.481.9"

	// VarianRTPlanStorage is Varian's private RT Plan SOP class. Planning
	// systems emit it for plans carrying vendor extensions; it is handled
	// exactly like RTPlanStorage.
	VarianRTPlanStorage = "1.2.246.352.70.1.70"
)

// Image storage SOP classes referenced by RT structure sets and plans.
const (
	CTImageStorage         = "1.2.840.10008.5.1.4.1.1.2"
	EnhancedCTImageStorage = "1.2.840.10008.5.1.4.1.1.2.1"

	MRImageStorage         = "1.2.840.10008.5.1.4.1.1.4"
	EnhancedMRImageStorage = "1.2.840.10008.5.1.4.1.1.4.1"

	PETImageStorage         = "1.2.840.10008.5.1.4.1.1.128"
	EnhancedPETImageStorage = "1.2.840.10008.5.1.4.1.1.130"
)

// Registration storage SOP classes.
const (
	SpatialRegistrationStorage           = "1.2.840.10008.5.1.4.1.1.66.1"
	DeformableSpatialRegistrationStorage = "1.2.840.10008.5.1.4.1.1.66.3"
)

// Query/Retrieve Service SOP Classes
const (
	// Study Root Query/Retrieve
	StudyRootQueryRetrieveInformationModelFind = "1.2.840.10008.5.1.4.1.2.2.1"
	StudyRootQueryRetrieveInformationModelMove = "1.2.840.10008.5.1.4.1.2.2.2"
	StudyRootQueryRetrieveInformationModelGet  = "1.2.840.10008.5.1.4.1.2.2.3"

	// Patient Root Query/Retrieve
	PatientRootQueryRetrieveInformationModelFind = "1.2.840.10008.5.1.4.1.2.1.1"
	PatientRootQueryRetrieveInformationModelMove = "1.2.840.10008.5.1.4.1.2.1.2"
	PatientRootQueryRetrieveInformationModelGet  = "1.2.840.10008.5.1.4.1.2.1.3"

	// Patient/Study Only Query/Retrieve
	PatientStudyOnlyQueryRetrieveInformationModelFind = "1.2.840.10008.5.1.4.1.2.3.1"
	PatientStudyOnlyQueryRetrieveInformationModelMove = "1.2.840.10008.5.1.4.1.2.3.2"
	PatientStudyOnlyQueryRetrieveInformationModelGet  = "1.2.840.10008.5.1.4.1.2.3.3"
)

// SOPClassInfo provides human-readable information about a SOP Class UID
type SOPClassInfo struct {
	UID         string
	Name        string
	Category    string
	Description string
}

// GetSOPClassInfo returns information about a SOP Class UID
func GetSOPClassInfo(uid string) *SOPClassInfo {
	info, ok := sopClassRegistry[uid]
	if !ok {
		return &SOPClassInfo{
			UID:      uid,
			Name:     "Unknown",
			Category: "Unknown",
		}
	}
	return &info
}

// IsStorageSOPClass returns true if the UID is a storage SOP class
func IsStorageSOPClass(uid string) bool {
	info := GetSOPClassInfo(uid)
	return info.Category == "Storage"
}

// IsQueryRetrieveSOPClass returns true if the UID is a query/retrieve SOP class
func IsQueryRetrieveSOPClass(uid string) bool {
	info := GetSOPClassInfo(uid)
	return info.Category == "Query/Retrieve"
}

// sopClassRegistry maps SOP Class UIDs to their information
var sopClassRegistry = map[string]SOPClassInfo{
	// Verification
	VerificationSOPClass: {
		UID:      VerificationSOPClass,
		Name:     "Verification SOP Class",
		Category: "Verification",
	},

	// RT
	RTImageStorage: {
		UID:      RTImageStorage,
		Name:     "RT Image Storage",
		Category: "Storage",
	},
	RTDoseStorage: {
		UID:      RTDoseStorage,
		Name:     "RT Dose Storage",
		Category: "Storage",
	},
	RTStructureSetStorage: {
		UID:      RTStructureSetStorage,
		Name:     "RT Structure Set Storage",
		Category: "Storage",
	},
	RTBeamsTreatmentRecordStorage: {
		UID:      RTBeamsTreatmentRecordStorage,
		Name:     "RT Beams Treatment Record Storage",
		Category: "Storage",
	},
	RTPlanStorage: {
		UID:      RTPlanStorage,
		Name:     "RT Plan Storage",
		Category: "Storage",
	},
	RTIonPlanStorage: {
		UID:      RTIonPlanStorage,
		Name:     "RT Ion Plan Storage",
		Category: "Storage",
	},
	RTIonBeamsTreatmentRecordStorage: {
		UID:      RTIonBeamsTreatmentRecordStorage,
		Name:     "RT Ion Beams Treatment Record Storage",
		Category: "Storage",
	},
	VarianRTPlanStorage: {
		UID:      VarianRTPlanStorage,
		Name:     "Varian RT Plan Storage (private)",
		Category: "Storage",
	},

	// Images
	CTImageStorage: {
		UID:      CTImageStorage,
		Name:     "CT Image Storage",
		Category: "Storage",
	},
	EnhancedCTImageStorage: {
		UID:      EnhancedCTImageStorage,
		Name:     "Enhanced CT Image Storage",
		Category: "Storage",
	},
	MRImageStorage: {
		UID:      MRImageStorage,
		Name:     "MR Image Storage",
		Category: "Storage",
	},
	EnhancedMRImageStorage: {
		UID:      EnhancedMRImageStorage,
		Name:     "Enhanced MR Image Storage",
		Category: "Storage",
	},
	PETImageStorage: {
		UID:      PETImageStorage,
		Name:     "PET Image Storage",
		Category: "Storage",
	},
	EnhancedPETImageStorage: {
		UID:      EnhancedPETImageStorage,
		Name:     "Enhanced PET Image Storage",
		Category: "Storage",
	},

	// Registration
	SpatialRegistrationStorage: {
		UID:      SpatialRegistrationStorage,
		Name:     "Spatial Registration Storage",
		Category: "Storage",
	},
	DeformableSpatialRegistrationStorage: {
		UID:      DeformableSpatialRegistrationStorage,
		Name:     "Deformable Spatial Registration Storage",
		Category: "Storage",
	},

	// Query/Retrieve - Study Root
	StudyRootQueryRetrieveInformationModelFind: {
		UID:      StudyRootQueryRetrieveInformationModelFind,
		Name:     "Study Root Query/Retrieve - FIND",
		Category: "Query/Retrieve",
	},
	StudyRootQueryRetrieveInformationModelMove: {
		UID:      StudyRootQueryRetrieveInformationModelMove,
		Name:     "Study Root Query/Retrieve - MOVE",
		Category: "Query/Retrieve",
	},
	StudyRootQueryRetrieveInformationModelGet: {
		UID:      StudyRootQueryRetrieveInformationModelGet,
		Name:     "Study Root Query/Retrieve - GET",
		Category: "Query/Retrieve",
	},

	// Query/Retrieve - Patient Root
	PatientRootQueryRetrieveInformationModelFind: {
		UID:      PatientRootQueryRetrieveInformationModelFind,
		Name:     "Patient Root Query/Retrieve - FIND",
		Category: "Query/Retrieve",
	},
	PatientRootQueryRetrieveInformationModelMove: {
		UID:      PatientRootQueryRetrieveInformationModelMove,
		Name:     "Patient Root Query/Retrieve - MOVE",
		Category: "Query/Retrieve",
	},
	PatientRootQueryRetrieveInformationModelGet: {
		UID:      PatientRootQueryRetrieveInformationModelGet,
		Name:     "Patient Root Query/Retrieve - GET",
		Category: "Query/Retrieve",
	},
}
