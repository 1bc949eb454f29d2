package client

import (
	"fmt"

	"github.com/oncobeam/rtflow/dicom"
	"github.com/oncobeam/rtflow/dimse"
	"github.com/oncobeam/rtflow/types"
)

// CMoveRequest encapsulates the information required to perform a C-MOVE operation.
type CMoveRequest struct {
	SOPClassUID     string
	MessageID       uint16
	Priority        uint16
	MoveDestination string         // AE title the SCP should send instances to
	Dataset         *dicom.Dataset // Query identifying which instances to retrieve
}

// CMoveResponse represents a single C-MOVE response from the SCP.
type CMoveResponse struct {
	Status                         uint16
	MessageID                      uint16
	NumberOfRemainingSuboperations *uint16
	NumberOfCompletedSuboperations *uint16
	NumberOfFailedSuboperations    *uint16
	NumberOfWarningSuboperations   *uint16
}

// SendCMove performs a DICOM C-MOVE operation. The SCP opens a separate
// association to the move destination AE and sends matching instances there
// via C-STORE, reporting progress on this association.
//
// Returns all responses received, ending with the final (non-pending) one.
func (a *Association) SendCMove(req *CMoveRequest) ([]*CMoveResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("c-move request cannot be nil")
	}

	if req.Dataset == nil {
		return nil, fmt.Errorf("c-move request requires a dataset")
	}

	if req.MoveDestination == "" {
		return nil, fmt.Errorf("c-move request requires a move destination AE title")
	}

	sopClass := req.SOPClassUID
	if sopClass == "" {
		sopClass = types.StudyRootQueryRetrieveInformationModelMove
	}

	messageID := req.MessageID
	if messageID == 0 {
		messageID = 1
	}

	priority := req.Priority
	if priority == 0 {
		priority = 0x0000 // Medium priority per DICOM PS3.7
	}

	presContextID, err := a.GetPresentationContextID(sopClass)
	if err != nil {
		return nil, err
	}

	// Encode the query dataset using the negotiated transfer syntax
	datasetBytes, err := dicom.EncodeDatasetWithTransferSyntax(req.Dataset, a.GetTransferSyntax(presContextID))
	if err != nil {
		return nil, fmt.Errorf("failed to encode C-MOVE query: %w", err)
	}

	// Build C-MOVE-RQ command
	command := &types.Message{
		CommandField:        dimse.CMoveRQ,
		MessageID:           messageID,
		Priority:            priority,
		AffectedSOPClassUID: sopClass,
		MoveDestination:     req.MoveDestination,
		CommandDataSetType:  0x0000, // Dataset present
	}

	commandData, err := dimse.EncodeCommand(command)
	if err != nil {
		return nil, fmt.Errorf("failed to encode C-MOVE command: %w", err)
	}

	// Send C-MOVE-RQ with dataset
	if err := dimse.SendDIMSEMessage(a.conn, presContextID, a.maxPDULength, commandData, datasetBytes); err != nil {
		return nil, fmt.Errorf("failed to send C-MOVE request: %w", err)
	}

	// Collect responses
	var responses []*CMoveResponse

	for {
		responseCmd, _, err := dimse.ReceiveDIMSEMessage(a.conn)
		if err != nil {
			return responses, fmt.Errorf("failed to receive C-MOVE response: %w", err)
		}

		if responseCmd.CommandField != dimse.CMoveRSP {
			return responses, fmt.Errorf("unexpected response command: 0x%04X (expected C-MOVE-RSP)", responseCmd.CommandField)
		}

		response := &CMoveResponse{
			Status:                         responseCmd.Status,
			MessageID:                      responseCmd.MessageIDBeingRespondedTo,
			NumberOfRemainingSuboperations: responseCmd.NumberOfRemainingSuboperations,
			NumberOfCompletedSuboperations: responseCmd.NumberOfCompletedSuboperations,
			NumberOfFailedSuboperations:    responseCmd.NumberOfFailedSuboperations,
			NumberOfWarningSuboperations:   responseCmd.NumberOfWarningSuboperations,
		}

		responses = append(responses, response)

		// Check if this is the final response
		if responseCmd.Status != dimse.StatusPending {
			break
		}
	}

	return responses, nil
}
