package dicom

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// InflateDataset decompresses a dataset encoded with the Deflated Explicit VR
// Little Endian transfer syntax (1.2.840.10008.1.2.1.99).
//
// The deflated transfer syntax stores the dataset as a raw deflate stream
// without any zlib header, starting immediately after the File Meta
// Information.
func InflateDataset(data []byte) ([]byte, error) {
	reader := flate.NewReader(bytes.NewReader(data))
	defer reader.Close()

	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to inflate dataset: %w", err)
	}
	return out, nil
}

// DeflateDataset compresses a dataset for the Deflated Explicit VR Little
// Endian transfer syntax. The input must already be encoded in Explicit VR
// Little Endian.
func DeflateDataset(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create deflate writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to deflate dataset: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize deflate stream: %w", err)
	}
	return buf.Bytes(), nil
}
