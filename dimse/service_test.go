package dimse

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/oncobeam/rtflow/types"
)

// MockPDULayer is a mock implementation of PDULayer for testing
type MockPDULayer struct {
	SendDIMSEResponseFunc            func(presContextID byte, commandData []byte) error
	SendDIMSEResponseWithDatasetFunc func(presContextID byte, commandData []byte, datasetData []byte) error
	TransferSyntax                   string
}

func (m *MockPDULayer) SendDIMSEResponse(presContextID byte, commandData []byte) error {
	if m.SendDIMSEResponseFunc != nil {
		return m.SendDIMSEResponseFunc(presContextID, commandData)
	}
	return nil
}

func (m *MockPDULayer) SendDIMSEResponseWithDataset(presContextID byte, commandData []byte, datasetData []byte) error {
	if m.SendDIMSEResponseWithDatasetFunc != nil {
		return m.SendDIMSEResponseWithDatasetFunc(presContextID, commandData, datasetData)
	}
	return nil
}

func (m *MockPDULayer) GetTransferSyntax(presContextID byte) (string, error) {
	if m.TransferSyntax == "" {
		return "", errors.New("presentation context not found")
	}
	return m.TransferSyntax, nil
}

// MockServiceHandler is a mock implementation of ServiceHandler for testing
type MockServiceHandler struct {
	HandleDIMSEFunc func(ctx context.Context, msg *types.Message, data []byte) (*types.Message, []byte, error)
}

func (m *MockServiceHandler) HandleDIMSE(ctx context.Context, msg *types.Message, data []byte) (*types.Message, []byte, error) {
	if m.HandleDIMSEFunc != nil {
		return m.HandleDIMSEFunc(ctx, msg, data)
	}
	// Default response
	return &types.Message{
		CommandField:              CEchoRSP,
		Status:                    StatusSuccess,
		CommandDataSetType:        0x0101,
		MessageIDBeingRespondedTo: msg.MessageID,
	}, nil, nil
}

func TestNewService(t *testing.T) {
	handler := &MockServiceHandler{}
	service := NewService(handler, nil)

	if service == nil {
		t.Fatal("Expected non-nil service")
	}

	if service.handler == nil {
		t.Error("Service handler not set")
	}
}

func TestService_HandleDIMSEMessage_CEchoNoDataset(t *testing.T) {
	// Create handler that returns simple C-ECHO response
	handler := &MockServiceHandler{
		HandleDIMSEFunc: func(ctx context.Context, msg *types.Message, data []byte) (*types.Message, []byte, error) {
			return &types.Message{
				CommandField:              CEchoRSP,
				Status:                    StatusSuccess,
				CommandDataSetType:        0x0101,
				MessageIDBeingRespondedTo: msg.MessageID,
			}, nil, nil
		},
	}

	service := NewService(handler, nil)
	pduLayer := &MockPDULayer{
		SendDIMSEResponseWithDatasetFunc: func(presContextID byte, commandData []byte, datasetData []byte) error {
			if presContextID != 1 {
				t.Errorf("Expected context ID 1, got %d", presContextID)
			}
			if len(commandData) == 0 {
				t.Error("Expected command data")
			}
			return nil
		},
	}

	// Create C-ECHO request command
	msg := &types.Message{
		CommandField:        CEchoRQ,
		MessageID:           1,
		AffectedSOPClassUID: "1.2.840.10008.1.1",
		CommandDataSetType:  0x0101, // No dataset
	}
	commandData := createDIMSECommand(msg)

	// Send command (last fragment, no dataset)
	err := service.HandleDIMSEMessage(1, 0x03, commandData, pduLayer)
	if err != nil {
		t.Fatalf("HandleDIMSEMessage failed: %v", err)
	}
}

func TestService_HandleDIMSEMessage_WithDataset(t *testing.T) {
	datasetData := []byte{0x08, 0x00, 0x18, 0x00, 0x04, 0x00, 0x00, 0x00, '1', '.', '2', 0x00}

	// Create handler
	handler := &MockServiceHandler{
		HandleDIMSEFunc: func(ctx context.Context, msg *types.Message, data []byte) (*types.Message, []byte, error) {
			// Verify dataset was received
			if !bytes.Equal(data, datasetData) {
				t.Errorf("Handler received %v, want %v", data, datasetData)
			}
			return &types.Message{
				CommandField:              CStoreRSP,
				Status:                    StatusSuccess,
				CommandDataSetType:        0x0101,
				MessageIDBeingRespondedTo: msg.MessageID,
			}, nil, nil
		},
	}

	service := NewService(handler, nil)
	pduLayer := &MockPDULayer{
		SendDIMSEResponseWithDatasetFunc: func(presContextID byte, commandData []byte, datasetData []byte) error {
			if len(commandData) == 0 {
				t.Error("Expected command data in response")
			}
			return nil
		},
	}

	// Create C-STORE request command
	msg := &types.Message{
		CommandField:        CStoreRQ,
		MessageID:           2,
		AffectedSOPClassUID: "1.2.840.10008.5.1.4.1.1.481.5",
		CommandDataSetType:  0x0000, // Has dataset
	}
	commandData := createDIMSECommand(msg)

	// Send command (last fragment)
	err := service.HandleDIMSEMessage(1, 0x03, commandData, pduLayer)
	if err != nil {
		t.Fatalf("HandleDIMSEMessage failed: %v", err)
	}

	// Send dataset (last fragment)
	err = service.HandleDIMSEMessage(1, 0x02, datasetData, pduLayer)
	if err != nil {
		t.Fatalf("HandleDIMSEMessage failed: %v", err)
	}
}

func TestService_HandleDIMSEMessage_NegotiatedTransferSyntax(t *testing.T) {
	const negotiated = "1.2.840.10008.1.2.4.90" // JPEG 2000 Lossless

	handler := &MockServiceHandler{
		HandleDIMSEFunc: func(ctx context.Context, msg *types.Message, data []byte) (*types.Message, []byte, error) {
			if msg.TransferSyntaxUID != negotiated {
				t.Errorf("TransferSyntaxUID = %q, want %q", msg.TransferSyntaxUID, negotiated)
			}
			return &types.Message{
				CommandField:              CStoreRSP,
				Status:                    StatusSuccess,
				CommandDataSetType:        0x0101,
				MessageIDBeingRespondedTo: msg.MessageID,
			}, nil, nil
		},
	}

	service := NewService(handler, nil)
	pduLayer := &MockPDULayer{TransferSyntax: negotiated}

	msg := &types.Message{
		CommandField:        CStoreRQ,
		MessageID:           6,
		AffectedSOPClassUID: "1.2.840.10008.5.1.4.1.1.481.5",
		CommandDataSetType:  0x0000,
	}
	commandData := createDIMSECommand(msg)

	if err := service.HandleDIMSEMessage(1, 0x03, commandData, pduLayer); err != nil {
		t.Fatalf("HandleDIMSEMessage failed: %v", err)
	}
	if err := service.HandleDIMSEMessage(1, 0x02, []byte{0x01, 0x02}, pduLayer); err != nil {
		t.Fatalf("HandleDIMSEMessage failed: %v", err)
	}
}

func TestService_HandleDIMSEMessage_MultiFragment(t *testing.T) {
	handler := &MockServiceHandler{
		HandleDIMSEFunc: func(ctx context.Context, msg *types.Message, data []byte) (*types.Message, []byte, error) {
			// Verify all fragments were received
			if len(data) != 20 {
				t.Errorf("Expected 20 bytes of data, got %d", len(data))
			}
			return &types.Message{
				CommandField:              CStoreRSP,
				Status:                    StatusSuccess,
				CommandDataSetType:        0x0101,
				MessageIDBeingRespondedTo: msg.MessageID,
			}, nil, nil
		},
	}

	service := NewService(handler, nil)
	pduLayer := &MockPDULayer{}

	// Create command
	msg := &types.Message{
		CommandField:        CStoreRQ,
		MessageID:           3,
		AffectedSOPClassUID: "1.2.840.10008.5.1.4.1.1.481.5",
		CommandDataSetType:  0x0000,
	}
	commandData := createDIMSECommand(msg)

	// Send command (last fragment)
	err := service.HandleDIMSEMessage(1, 0x03, commandData, pduLayer)
	if err != nil {
		t.Fatalf("HandleDIMSEMessage failed: %v", err)
	}

	// Send dataset fragments
	fragment1 := bytes.Repeat([]byte{0xAA}, 12)
	err = service.HandleDIMSEMessage(1, 0x00, fragment1, pduLayer) // More fragments
	if err != nil {
		t.Fatalf("HandleDIMSEMessage failed: %v", err)
	}

	fragment2 := bytes.Repeat([]byte{0xBB}, 8)
	err = service.HandleDIMSEMessage(1, 0x02, fragment2, pduLayer) // Last fragment
	if err != nil {
		t.Fatalf("HandleDIMSEMessage failed: %v", err)
	}
}

func TestService_HandleDIMSEMessage_ParseError(t *testing.T) {
	handler := &MockServiceHandler{}
	service := NewService(handler, nil)
	pduLayer := &MockPDULayer{}

	// Send invalid command data (too short)
	invalidData := []byte{0x00, 0x01, 0x02}
	err := service.HandleDIMSEMessage(1, 0x03, invalidData, pduLayer)
	if err == nil {
		t.Error("Expected error for invalid command data")
	}
}

func TestService_HandleDIMSEMessage_HandlerError(t *testing.T) {
	// Create handler that returns an error
	handler := &MockServiceHandler{
		HandleDIMSEFunc: func(ctx context.Context, msg *types.Message, data []byte) (*types.Message, []byte, error) {
			return nil, nil, errors.New("handler processing failed")
		},
	}

	service := NewService(handler, nil)
	pduLayer := &MockPDULayer{}

	// Create valid command
	msg := &types.Message{
		CommandField:        CEchoRQ,
		MessageID:           4,
		AffectedSOPClassUID: "1.2.840.10008.1.1",
		CommandDataSetType:  0x0101,
	}
	commandData := createDIMSECommand(msg)

	// Send command
	err := service.HandleDIMSEMessage(1, 0x03, commandData, pduLayer)
	if err == nil {
		t.Error("Expected error from handler")
	}
	if err.Error() != "service handler failed: handler processing failed" {
		t.Errorf("Unexpected error message: %v", err)
	}
}

func TestService_HandleDIMSEMessage_PDULayerError(t *testing.T) {
	handler := &MockServiceHandler{
		HandleDIMSEFunc: func(ctx context.Context, msg *types.Message, data []byte) (*types.Message, []byte, error) {
			return &types.Message{
				CommandField:              CEchoRSP,
				Status:                    StatusSuccess,
				CommandDataSetType:        0x0101,
				MessageIDBeingRespondedTo: msg.MessageID,
			}, nil, nil
		},
	}

	service := NewService(handler, nil)
	pduLayer := &MockPDULayer{
		SendDIMSEResponseWithDatasetFunc: func(presContextID byte, commandData []byte, datasetData []byte) error {
			return errors.New("PDU send failed")
		},
	}

	// Create valid command
	msg := &types.Message{
		CommandField:        CEchoRQ,
		MessageID:           5,
		AffectedSOPClassUID: "1.2.840.10008.1.1",
		CommandDataSetType:  0x0101,
	}
	commandData := createDIMSECommand(msg)

	// Send command
	err := service.HandleDIMSEMessage(1, 0x03, commandData, pduLayer)
	if err == nil {
		t.Error("Expected PDU layer error")
	}
	if err.Error() != "PDU send failed" {
		t.Errorf("Unexpected error message: %v", err)
	}
}

func TestService_CommandConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant uint16
		expected uint16
	}{
		{"C-STORE-RQ", CStoreRQ, 0x0001},
		{"C-STORE-RSP", CStoreRSP, 0x8001},
		{"C-FIND-RQ", CFindRQ, 0x0020},
		{"C-FIND-RSP", CFindRSP, 0x8020},
		{"C-MOVE-RQ", CMoveRQ, 0x0021},
		{"C-MOVE-RSP", CMoveRSP, 0x8021},
		{"C-GET-RQ", CGetRQ, 0x0010},
		{"C-GET-RSP", CGetRSP, 0x8010},
		{"C-ECHO-RQ", CEchoRQ, 0x0030},
		{"C-ECHO-RSP", CEchoRSP, 0x8030},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.expected {
				t.Errorf("%s = 0x%04x, want 0x%04x", tt.name, tt.constant, tt.expected)
			}
		})
	}
}

func TestService_StatusConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant uint16
		expected uint16
	}{
		{"Success", StatusSuccess, 0x0000},
		{"Pending", StatusPending, 0xFF00},
		{"Failure", StatusFailure, 0xC000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.expected {
				t.Errorf("Status%s = 0x%04x, want 0x%04x", tt.name, tt.constant, tt.expected)
			}
		})
	}
}
