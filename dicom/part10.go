package dicom

import (
	"fmt"
	"log/slog"
	"strings"
)

// StripPart10Header removes the DICOM Part 10 preamble and File Meta Information
// to extract just the dataset.
//
// DICOM Part 10 files contain:
//   - 128 byte preamble
//   - 4 byte "DICM" prefix
//   - File Meta Information elements (group 0x0002)
//   - Dataset (the actual DICOM data)
//
// This function is useful when you need to send a DICOM dataset via DIMSE
// operations (like C-STORE), which expect only the dataset without the
// Part 10 wrapper.
//
// Parameters:
//   - data: The complete DICOM Part 10 file data
//
// Returns:
//   - Dataset bytes (without preamble and file meta information)
//   - Error if the data is not a valid DICOM Part 10 file
//
// Example:
//
//	fileData, _ := os.ReadFile("image.dcm")
//	datasetOnly, err := dicom.StripPart10Header(fileData)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Now datasetOnly can be sent via C-STORE
func StripPart10Header(data []byte) ([]byte, error) {
	if len(data) < 132 {
		return nil, fmt.Errorf("data too short to be DICOM Part 10 (need at least 132 bytes, got %d)", len(data))
	}

	// Check for DICM prefix at offset 128
	if string(data[128:132]) != "DICM" {
		return nil, fmt.Errorf("not a valid DICOM Part 10 file (missing DICM prefix at offset 128)")
	}

	// Skip preamble (128) + DICM (4) = start at offset 132
	offset := 132

	var transferSyntaxUID string

	// Skip all group 0x0002 elements (File Meta Information)
	for offset+8 <= len(data) {
		group := uint16(data[offset]) | (uint16(data[offset+1]) << 8)
		element := uint16(data[offset+2]) | (uint16(data[offset+3]) << 8)

		// If we've passed group 0x0002, we're at the dataset
		if group != 0x0002 {
			break
		}

		// Read VR (2 bytes)
		vr := string(data[offset+4 : offset+6])

		var length uint32
		var valueOffset int

		// Some VRs use different length encoding
		if vr == "OB" || vr == "OW" || vr == "OF" || vr == "SQ" || vr == "UN" || vr == "UT" {
			// Explicit VR with 32-bit length
			offset += 8 // Skip tag (4) + VR (2) + reserved (2)
			if offset+4 > len(data) {
				break
			}
			length = uint32(data[offset]) | (uint32(data[offset+1]) << 8) |
				(uint32(data[offset+2]) << 16) | (uint32(data[offset+3]) << 24)
			offset += 4
			valueOffset = offset
		} else {
			// Explicit VR with 16-bit length
			offset += 6 // Skip tag (4) + VR (2)
			if offset+2 > len(data) {
				break
			}
			length = uint32(data[offset]) | (uint32(data[offset+1]) << 8)
			offset += 2
			valueOffset = offset
		}

		// Check if this is Transfer Syntax UID (0002,0010)
		if group == 0x0002 && element == 0x0010 {
			if valueOffset+int(length) <= len(data) {
				transferSyntaxUID = string(data[valueOffset : valueOffset+int(length)])
				// Remove any padding
				transferSyntaxUID = strings.TrimRight(transferSyntaxUID, "\x00 ")
			}
		}

		// Skip value
		offset += int(length)
		if offset > len(data) {
			break
		}
	}

	if transferSyntaxUID != "" {
		slog.Debug("Found Transfer Syntax UID in File Meta Information",
			"transfer_syntax", transferSyntaxUID,
			"dataset_start_offset", offset)
	}

	if offset >= len(data) {
		return nil, fmt.Errorf("failed to find dataset after File Meta Information")
	}

	return data[offset:], nil
}

// FileMeta holds the File Meta Information attributes needed to route a
// Part 10 file over DIMSE.
type FileMeta struct {
	SOPClassUID       string
	SOPInstanceUID    string
	TransferSyntaxUID string
}

// ParseFileMeta reads the group 0x0002 elements of a DICOM Part 10 file and
// returns the media storage SOP class/instance UIDs and transfer syntax.
func ParseFileMeta(data []byte) (FileMeta, error) {
	var meta FileMeta

	if !HasPart10Header(data) {
		return meta, fmt.Errorf("not a valid DICOM Part 10 file (missing DICM prefix at offset 128)")
	}

	offset := 132
	for offset+8 <= len(data) {
		group := uint16(data[offset]) | (uint16(data[offset+1]) << 8)
		element := uint16(data[offset+2]) | (uint16(data[offset+3]) << 8)
		if group != 0x0002 {
			break
		}

		vr := string(data[offset+4 : offset+6])

		var length uint32
		if vr == "OB" || vr == "OW" || vr == "OF" || vr == "SQ" || vr == "UN" || vr == "UT" {
			offset += 8
			if offset+4 > len(data) {
				break
			}
			length = uint32(data[offset]) | (uint32(data[offset+1]) << 8) |
				(uint32(data[offset+2]) << 16) | (uint32(data[offset+3]) << 24)
			offset += 4
		} else {
			offset += 6
			if offset+2 > len(data) {
				break
			}
			length = uint32(data[offset]) | (uint32(data[offset+1]) << 8)
			offset += 2
		}

		if offset+int(length) > len(data) {
			break
		}
		value := strings.TrimRight(string(data[offset:offset+int(length)]), "\x00 ")

		switch element {
		case 0x0002:
			meta.SOPClassUID = value
		case 0x0003:
			meta.SOPInstanceUID = value
		case 0x0010:
			meta.TransferSyntaxUID = value
		}

		offset += int(length)
	}

	if meta.SOPClassUID == "" || meta.SOPInstanceUID == "" {
		return meta, fmt.Errorf("file meta information is missing media storage SOP identifiers")
	}

	return meta, nil
}

// HasPart10Header checks if the data starts with a DICOM Part 10 header.
//
// Returns true if the data contains the 128-byte preamble followed by "DICM".
func HasPart10Header(data []byte) bool {
	if len(data) < 132 {
		return false
	}
	return string(data[128:132]) == "DICM"
}

const (
	// ImplementationClassUID identifies this implementation in File Meta
	// Information and association negotiation.
	ImplementationClassUID = "1.2.826.0.1.3680043.10.1082.1"

	// ImplementationVersionName is the version string sent alongside the
	// implementation class UID.
	ImplementationVersionName = "RTFLOW_010"
)

// BuildPart10 wraps a raw dataset with a DICOM Part 10 preamble and File Meta
// Information group so it can be written to disk as a standard .dcm file.
//
// The File Meta Information is always encoded in Explicit VR Little Endian as
// required by Part 10, regardless of the transfer syntax of the dataset.
//
// Parameters:
//   - sopClassUID: SOP Class UID of the dataset (0002,0002)
//   - sopInstanceUID: SOP Instance UID of the dataset (0002,0003)
//   - transferSyntaxUID: Transfer syntax the dataset bytes are encoded in (0002,0010)
//   - dataset: The dataset bytes, without any Part 10 wrapper
//
// Returns the complete Part 10 file contents.
func BuildPart10(sopClassUID, sopInstanceUID, transferSyntaxUID string, dataset []byte) []byte {
	meta := make([]byte, 0, 256)

	// File Meta Information Version (0002,0001)
	meta = appendMetaElement(meta, 0x0001, "OB", []byte{0x00, 0x01})
	// Media Storage SOP Class UID (0002,0002)
	meta = appendMetaElement(meta, 0x0002, "UI", padUID(sopClassUID))
	// Media Storage SOP Instance UID (0002,0003)
	meta = appendMetaElement(meta, 0x0003, "UI", padUID(sopInstanceUID))
	// Transfer Syntax UID (0002,0010)
	meta = appendMetaElement(meta, 0x0010, "UI", padUID(transferSyntaxUID))
	// Implementation Class UID (0002,0012)
	meta = appendMetaElement(meta, 0x0012, "UI", padUID(ImplementationClassUID))
	// Implementation Version Name (0002,0013)
	meta = appendMetaElement(meta, 0x0013, "SH", padString(ImplementationVersionName))

	out := make([]byte, 0, 132+12+len(meta)+len(dataset))
	out = append(out, make([]byte, 128)...)
	out = append(out, "DICM"...)

	// File Meta Information Group Length (0002,0000) covers everything
	// after its own value up to the end of group 0x0002.
	groupLength := make([]byte, 4)
	groupLength[0] = byte(len(meta))
	groupLength[1] = byte(len(meta) >> 8)
	groupLength[2] = byte(len(meta) >> 16)
	groupLength[3] = byte(len(meta) >> 24)
	out = appendMetaElement(out, 0x0000, "UL", groupLength)

	out = append(out, meta...)
	out = append(out, dataset...)
	return out
}

// appendMetaElement encodes a single group 0x0002 element in Explicit VR
// Little Endian. Only the short-form VRs and OB are needed for file meta.
func appendMetaElement(buf []byte, element uint16, vr string, value []byte) []byte {
	buf = append(buf, 0x02, 0x00)
	buf = append(buf, byte(element), byte(element>>8))
	buf = append(buf, vr[0], vr[1])
	if vr == "OB" {
		buf = append(buf, 0x00, 0x00) // Reserved
		length := uint32(len(value))
		buf = append(buf, byte(length), byte(length>>8), byte(length>>16), byte(length>>24))
	} else {
		length := uint16(len(value))
		buf = append(buf, byte(length), byte(length>>8))
	}
	return append(buf, value...)
}

// padUID pads a UID value with a NUL byte to an even length.
func padUID(uid string) []byte {
	if len(uid)%2 != 0 {
		return append([]byte(uid), 0x00)
	}
	return []byte(uid)
}

// padString pads a text value with a space to an even length.
func padString(s string) []byte {
	if len(s)%2 != 0 {
		return append([]byte(s), ' ')
	}
	return []byte(s)
}
