package anonymize

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"
)

// AuditEntry records one original-to-anonymized identity mapping.
type AuditEntry struct {
	OriginalPatientID     string
	OriginalPatientName   string
	AnonymizedPatientID   string
	AnonymizedPatientName string
	Timestamp             time.Time
}

// AuditWriter owns the audit list from a single goroutine. Store handlers
// push events onto the channel instead of sharing the list under a lock;
// duplicates of the same original ID/name pair collapse to the first entry.
type AuditWriter struct {
	events chan AuditEntry
	done   chan struct{}

	// owned by the consumer goroutine until done is closed
	entries []AuditEntry
	seen    map[string]bool
}

// NewAuditWriter starts the audit consumer.
func NewAuditWriter() *AuditWriter {
	w := &AuditWriter{
		events: make(chan AuditEntry, 64),
		done:   make(chan struct{}),
		seen:   make(map[string]bool),
	}
	go w.run()
	return w
}

func (w *AuditWriter) run() {
	defer close(w.done)
	for e := range w.events {
		key := e.OriginalPatientID + "\x00" + e.OriginalPatientName
		if w.seen[key] {
			continue
		}
		w.seen[key] = true
		w.entries = append(w.entries, e)
	}
}

// Record queues one mapping event.
func (w *AuditWriter) Record(originalID, originalName, anonymizedID, anonymizedName string) {
	w.events <- AuditEntry{
		OriginalPatientID:     originalID,
		OriginalPatientName:   originalName,
		AnonymizedPatientID:   anonymizedID,
		AnonymizedPatientName: anonymizedName,
		Timestamp:             time.Now().UTC(),
	}
}

// Close stops the consumer and returns the deduplicated entries in arrival
// order. Record must not be called after Close.
func (w *AuditWriter) Close() []AuditEntry {
	close(w.events)
	<-w.done
	return w.entries
}

// WriteAuditCSV writes the anonymization map in the export layout's format.
// Nothing is written for an empty entry list.
func WriteAuditCSV(path string, entries []AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create anonymization map: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{
		"OriginalPatientId", "OriginalPatientName",
		"AnonymizedPatientId", "AnonymizedPatientName", "TimestampUtc",
	}); err != nil {
		return fmt.Errorf("failed to write anonymization map header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			e.OriginalPatientID,
			e.OriginalPatientName,
			e.AnonymizedPatientID,
			e.AnonymizedPatientName,
			e.Timestamp.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write anonymization map row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
