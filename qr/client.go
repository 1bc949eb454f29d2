// Package qr drives Query/Retrieve against a remote node: study and series
// level C-FIND plus C-MOVE/C-GET per study or series.
package qr

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/oncobeam/rtflow/client"
	"github.com/oncobeam/rtflow/dicom"
	"github.com/oncobeam/rtflow/dimse"
	"github.com/oncobeam/rtflow/types"
)

var (
	tagQueryRetrieveLevel      = dicom.Tag{Group: 0x0008, Element: 0x0052}
	tagStudyDate               = dicom.Tag{Group: 0x0008, Element: 0x0020}
	tagSeriesDate              = dicom.Tag{Group: 0x0008, Element: 0x0021}
	tagModality                = dicom.Tag{Group: 0x0008, Element: 0x0060}
	tagModalitiesInStudy       = dicom.Tag{Group: 0x0008, Element: 0x0061}
	tagStudyDescription        = dicom.Tag{Group: 0x0008, Element: 0x1030}
	tagSeriesDescription       = dicom.Tag{Group: 0x0008, Element: 0x103E}
	tagPatientName             = dicom.Tag{Group: 0x0010, Element: 0x0010}
	tagPatientID               = dicom.Tag{Group: 0x0010, Element: 0x0020}
	tagStudyInstanceUID        = dicom.Tag{Group: 0x0020, Element: 0x000D}
	tagSeriesInstanceUID       = dicom.Tag{Group: 0x0020, Element: 0x000E}
	tagStudyID                 = dicom.Tag{Group: 0x0020, Element: 0x0010}
	tagSeriesNumber            = dicom.Tag{Group: 0x0020, Element: 0x0011}
	tagNumberOfSeriesInstances = dicom.Tag{Group: 0x0020, Element: 0x1209}
)

// Association is the SCU surface the client drives. Satisfied by
// *client.Association.
type Association interface {
	SendCFind(req *client.CFindRequest) ([]*client.CFindResponse, error)
	SendCMove(req *client.CMoveRequest) ([]*client.CMoveResponse, error)
	SendCGet(req *client.CGetRequest) ([]*client.CGetResponse, error)
}

// RetrieveResult summarizes the sub-operation counters of a completed move
// or get.
type RetrieveResult struct {
	Completed int
	Remaining int
	Failed    int
	Warning   int
	Status    uint16
}

// Client accumulates find results and tracks retrieve progress over one
// association.
type Client struct {
	assoc  Association
	logger *slog.Logger
}

// NewClient wraps an open association. A nil logger falls back to the
// default.
func NewClient(assoc Association, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{assoc: assoc, logger: logger}
}

// FindStudies issues a study-level C-FIND filtered by patient ID. Pending
// responses accumulate into Study records; a terminal Success ends the
// accumulation; any other status is logged but does not abort the exchange.
func (c *Client) FindStudies(patientID string) ([]types.Study, error) {
	query := dicom.NewDataset()
	query.AddElement(tagQueryRetrieveLevel, dicom.VR_CS, string(types.QueryLevelStudy))
	query.AddElement(tagPatientID, dicom.VR_LO, patientID)
	query.AddElement(tagPatientName, dicom.VR_PN, "")
	query.AddElement(tagModalitiesInStudy, dicom.VR_CS, "")
	query.AddElement(tagStudyDate, dicom.VR_DA, "")
	query.AddElement(tagStudyInstanceUID, dicom.VR_UI, "")
	query.AddElement(tagStudyID, dicom.VR_SH, "")
	query.AddElement(tagStudyDescription, dicom.VR_LO, "")

	responses, err := c.assoc.SendCFind(&client.CFindRequest{
		SOPClassUID: types.StudyRootQueryRetrieveInformationModelFind,
		Dataset:     query,
	})
	if err != nil {
		return nil, fmt.Errorf("study find failed: %w", err)
	}

	var studies []types.Study
	for _, resp := range responses {
		switch {
		case resp.Status == dimse.StatusPending:
			if resp.Dataset == nil {
				continue
			}
			studies = append(studies, types.Study{
				PatientID:         resp.Dataset.GetString(tagPatientID),
				PatientName:       resp.Dataset.GetString(tagPatientName),
				InstanceUID:       resp.Dataset.GetString(tagStudyInstanceUID),
				ID:                resp.Dataset.GetString(tagStudyID),
				Date:              resp.Dataset.GetString(tagStudyDate),
				Description:       resp.Dataset.GetString(tagStudyDescription),
				ModalitiesInStudy: resp.Dataset.GetStrings(tagModalitiesInStudy),
			})
		case resp.Status == dimse.StatusSuccess:
			// Terminal; accumulation is complete.
		default:
			c.logger.Error("Study find returned non-success status",
				"status", fmt.Sprintf("0x%04X", resp.Status),
				"patient_id", patientID)
		}
	}

	return studies, nil
}

// FindSeries issues a series-level C-FIND filtered by study instance UID.
func (c *Client) FindSeries(studyUID string) ([]types.Series, error) {
	query := dicom.NewDataset()
	query.AddElement(tagQueryRetrieveLevel, dicom.VR_CS, string(types.QueryLevelSeries))
	query.AddElement(tagStudyInstanceUID, dicom.VR_UI, studyUID)
	query.AddElement(tagSeriesInstanceUID, dicom.VR_UI, "")
	query.AddElement(tagSeriesDescription, dicom.VR_LO, "")
	query.AddElement(tagSeriesDate, dicom.VR_DA, "")
	query.AddElement(tagModality, dicom.VR_CS, "")
	query.AddElement(tagSeriesNumber, dicom.VR_IS, "")
	query.AddElement(tagNumberOfSeriesInstances, dicom.VR_IS, "")

	responses, err := c.assoc.SendCFind(&client.CFindRequest{
		SOPClassUID: types.StudyRootQueryRetrieveInformationModelFind,
		Dataset:     query,
	})
	if err != nil {
		return nil, fmt.Errorf("series find failed: %w", err)
	}

	var series []types.Series
	for _, resp := range responses {
		switch {
		case resp.Status == dimse.StatusPending:
			if resp.Dataset == nil {
				continue
			}
			count, _ := strconv.Atoi(resp.Dataset.GetString(tagNumberOfSeriesInstances))
			series = append(series, types.Series{
				StudyInstanceUID:  resp.Dataset.GetString(tagStudyInstanceUID),
				InstanceUID:       resp.Dataset.GetString(tagSeriesInstanceUID),
				Number:            resp.Dataset.GetString(tagSeriesNumber),
				Description:       resp.Dataset.GetString(tagSeriesDescription),
				Date:              resp.Dataset.GetString(tagSeriesDate),
				Modality:          resp.Dataset.GetString(tagModality),
				NumberOfInstances: count,
			})
		case resp.Status == dimse.StatusSuccess:
		default:
			c.logger.Error("Series find returned non-success status",
				"status", fmt.Sprintf("0x%04X", resp.Status),
				"study_uid", studyUID)
		}
	}

	return series, nil
}

// MoveStudy asks the remote node to send a whole study to the destination
// AE. Failures are reported, not retried; the caller decides whether to
// continue with other studies.
func (c *Client) MoveStudy(studyUID, destinationAE string) (RetrieveResult, error) {
	query := dicom.NewDataset()
	query.AddElement(tagQueryRetrieveLevel, dicom.VR_CS, string(types.QueryLevelStudy))
	query.AddElement(tagStudyInstanceUID, dicom.VR_UI, studyUID)
	return c.move(query, destinationAE, "study", studyUID)
}

// MoveSeries asks the remote node to send one series to the destination AE.
func (c *Client) MoveSeries(studyUID, seriesUID, destinationAE string) (RetrieveResult, error) {
	query := dicom.NewDataset()
	query.AddElement(tagQueryRetrieveLevel, dicom.VR_CS, string(types.QueryLevelSeries))
	query.AddElement(tagStudyInstanceUID, dicom.VR_UI, studyUID)
	query.AddElement(tagSeriesInstanceUID, dicom.VR_UI, seriesUID)
	return c.move(query, destinationAE, "series", seriesUID)
}

func (c *Client) move(query *dicom.Dataset, destinationAE, level, uid string) (RetrieveResult, error) {
	responses, err := c.assoc.SendCMove(&client.CMoveRequest{
		SOPClassUID:     types.StudyRootQueryRetrieveInformationModelMove,
		MoveDestination: destinationAE,
		Dataset:         query,
	})
	if err != nil {
		return RetrieveResult{}, fmt.Errorf("%s move failed: %w", level, err)
	}

	var result RetrieveResult
	for _, resp := range responses {
		result.Status = resp.Status
		applyCounters(&result, resp.NumberOfCompletedSuboperations, resp.NumberOfRemainingSuboperations,
			resp.NumberOfFailedSuboperations, resp.NumberOfWarningSuboperations)
	}

	if result.Status != dimse.StatusSuccess {
		c.logger.Error("Move finished with non-success status",
			"level", level, "uid", uid,
			"status", fmt.Sprintf("0x%04X", result.Status),
			"completed", result.Completed, "failed", result.Failed)
	} else {
		c.logger.Info("Move completed",
			"level", level, "uid", uid, "completed", result.Completed)
	}

	return result, nil
}

// GetStudy retrieves a whole study over this association. The caller must
// service the incoming C-STORE sub-operations.
func (c *Client) GetStudy(studyUID string) (RetrieveResult, error) {
	query := dicom.NewDataset()
	query.AddElement(tagQueryRetrieveLevel, dicom.VR_CS, string(types.QueryLevelStudy))
	query.AddElement(tagStudyInstanceUID, dicom.VR_UI, studyUID)
	return c.get(query, "study", studyUID)
}

// GetSeries retrieves one series over this association.
func (c *Client) GetSeries(studyUID, seriesUID string) (RetrieveResult, error) {
	query := dicom.NewDataset()
	query.AddElement(tagQueryRetrieveLevel, dicom.VR_CS, string(types.QueryLevelSeries))
	query.AddElement(tagStudyInstanceUID, dicom.VR_UI, studyUID)
	query.AddElement(tagSeriesInstanceUID, dicom.VR_UI, seriesUID)
	return c.get(query, "series", seriesUID)
}

func (c *Client) get(query *dicom.Dataset, level, uid string) (RetrieveResult, error) {
	responses, err := c.assoc.SendCGet(&client.CGetRequest{
		SOPClassUID: types.StudyRootQueryRetrieveInformationModelGet,
		Dataset:     query,
	})
	if err != nil {
		return RetrieveResult{}, fmt.Errorf("%s get failed: %w", level, err)
	}

	var result RetrieveResult
	for _, resp := range responses {
		result.Status = resp.Status
		applyCounters(&result, resp.NumberOfCompletedSuboperations, resp.NumberOfRemainingSuboperations,
			resp.NumberOfFailedSuboperations, resp.NumberOfWarningSuboperations)
	}

	if result.Status != dimse.StatusSuccess {
		c.logger.Error("Get finished with non-success status",
			"level", level, "uid", uid,
			"status", fmt.Sprintf("0x%04X", result.Status),
			"completed", result.Completed, "failed", result.Failed)
	}

	return result, nil
}

func applyCounters(result *RetrieveResult, completed, remaining, failed, warning *uint16) {
	if completed != nil {
		result.Completed = int(*completed)
	}
	if remaining != nil {
		result.Remaining = int(*remaining)
	}
	if failed != nil {
		result.Failed = int(*failed)
	}
	if warning != nil {
		result.Warning = int(*warning)
	}
}
