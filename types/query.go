package types

// QueryLevel represents the level of C-FIND query
type QueryLevel string

const (
	QueryLevelStudy  QueryLevel = "STUDY"
	QueryLevelSeries QueryLevel = "SERIES"
)

// Study is a flat study-level C-FIND result record.
type Study struct {
	PatientID         string
	PatientName       string
	InstanceUID       string
	ID                string
	Date              string
	Description       string
	ModalitiesInStudy []string
}

// Series is a flat series-level C-FIND result record.
type Series struct {
	StudyInstanceUID  string
	InstanceUID       string
	Number            string
	Description       string
	Date              string
	Modality          string
	NumberOfInstances int
}
