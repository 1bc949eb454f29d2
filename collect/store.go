// Package collect holds the working set of classified instances gathered
// while receiving or scanning files, grouped per patient and series. The
// store is deliberately mutable and destructible: the tree builder claims
// subsets out of it, and whatever is left at the end is unconnected to any
// plan.
package collect

import (
	"fmt"

	"github.com/oncobeam/rtflow/errors"
	"github.com/oncobeam/rtflow/rt"
)

// Entry ties a classified instance to its file location.
type Entry struct {
	Instance rt.Instance
	Path     string
}

// Series is an owned snapshot of one series: its UID, modality and entries in
// insertion order.
type Series struct {
	SeriesUID string
	Modality  rt.Modality
	Entries   []Entry
}

type seriesGroup struct {
	seriesUID string
	modality  rt.Modality
	entries   []Entry
}

func (g *seriesGroup) snapshot() Series {
	entries := make([]Entry, len(g.entries))
	copy(entries, g.entries)
	return Series{SeriesUID: g.seriesUID, Modality: g.modality, Entries: entries}
}

// Store is the per-patient arena, keyed by series UID. Claim and remove
// operations consume series out of the arena; claiming the same series twice
// is an immediate error rather than a silent empty result.
type Store struct {
	patientID string
	order     []string
	series    map[string]*seriesGroup
	claimed   map[string]bool
}

// NewStore creates an empty store for one patient.
func NewStore(patientID string) *Store {
	return &Store{
		patientID: patientID,
		series:    make(map[string]*seriesGroup),
		claimed:   make(map[string]bool),
	}
}

// PatientID returns the patient this store collects for.
func (s *Store) PatientID() string { return s.patientID }

// Len returns the number of instances currently held.
func (s *Store) Len() int {
	n := 0
	for _, g := range s.series {
		n += len(g.entries)
	}
	return n
}

// Add appends an instance to its series group, creating the group on first
// sight. Series keep insertion order, as do entries within a series.
func (s *Store) Add(instance rt.Instance, path string) {
	seriesUID := instance.Core().SeriesUID
	g, ok := s.series[seriesUID]
	if !ok {
		g = &seriesGroup{seriesUID: seriesUID, modality: instance.Modality()}
		s.series[seriesUID] = g
		s.order = append(s.order, seriesUID)
	}
	g.entries = append(g.entries, Entry{Instance: instance, Path: path})
}

// Find returns all entries of the given modality without removing them.
func (s *Store) Find(modality rt.Modality) []Entry {
	var out []Entry
	for _, uid := range s.order {
		g, ok := s.series[uid]
		if !ok || g.modality != modality {
			continue
		}
		out = append(out, g.entries...)
	}
	return out
}

// FindInstances returns all entries of the given modality matching the
// predicate, without removing them.
func (s *Store) FindInstances(modality rt.Modality, match func(rt.Instance) bool) []Entry {
	var out []Entry
	for _, e := range s.Find(modality) {
		if match(e.Instance) {
			out = append(out, e)
		}
	}
	return out
}

// SeriesOf returns snapshots of every series of the given modality, in
// insertion order, without removing them.
func (s *Store) SeriesOf(modality rt.Modality) []Series {
	var out []Series
	for _, uid := range s.order {
		g, ok := s.series[uid]
		if !ok || g.modality != modality {
			continue
		}
		out = append(out, g.snapshot())
	}
	return out
}

// ClaimSeries consumes a whole series out of the arena and returns it. A
// series that was already claimed or removed fails immediately; a series this
// store never saw returns nil.
func (s *Store) ClaimSeries(seriesUID string) (*Series, error) {
	if s.claimed[seriesUID] {
		return nil, fmt.Errorf("series %s: %w", seriesUID, errors.ErrSeriesClaimed)
	}
	g, ok := s.series[seriesUID]
	if !ok {
		return nil, nil
	}
	snapshot := g.snapshot()
	s.drop(seriesUID)
	return &snapshot, nil
}

// RemoveSeries consumes a series without returning it. Like ClaimSeries,
// removing an already-claimed series is an error.
func (s *Store) RemoveSeries(seriesUID string) error {
	_, err := s.ClaimSeries(seriesUID)
	return err
}

// FindAndRemove consumes and returns every entry of the given modality.
func (s *Store) FindAndRemove(modality rt.Modality) []Entry {
	return s.FindAndRemoveInstances(modality, func(rt.Instance) bool { return true })
}

// FindAndRemoveInstances consumes and returns every entry of the given
// modality matching the predicate. Series emptied by the removal disappear
// from the arena.
func (s *Store) FindAndRemoveInstances(modality rt.Modality, match func(rt.Instance) bool) []Entry {
	var out []Entry
	for _, uid := range append([]string(nil), s.order...) {
		g, ok := s.series[uid]
		if !ok || g.modality != modality {
			continue
		}
		var kept []Entry
		for _, e := range g.entries {
			if match(e.Instance) {
				out = append(out, e)
			} else {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			s.drop(uid)
		} else {
			g.entries = kept
		}
	}
	return out
}

// RemoveInstances removes the listed instances from their series, dropping
// any series emptied by the removal. Instances not present are ignored.
func (s *Store) RemoveInstances(instances []rt.Instance) {
	doomed := make(map[string]bool, len(instances))
	for _, i := range instances {
		doomed[i.Core().InstanceUID] = true
	}

	for _, uid := range append([]string(nil), s.order...) {
		g, ok := s.series[uid]
		if !ok {
			continue
		}
		var kept []Entry
		for _, e := range g.entries {
			if !doomed[e.Instance.Core().InstanceUID] {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			s.drop(uid)
		} else {
			g.entries = kept
		}
	}
}

func (s *Store) drop(seriesUID string) {
	delete(s.series, seriesUID)
	s.claimed[seriesUID] = true
	for i, uid := range s.order {
		if uid == seriesUID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Set groups stores for multiple patients, keyed by patient ID in first-seen
// order. Used by the store service while one association delivers instances
// for several patients.
type Set struct {
	order    []string
	patients map[string]*Store
}

// NewSet creates an empty multi-patient set.
func NewSet() *Set {
	return &Set{patients: make(map[string]*Store)}
}

// Add routes an instance to its patient's store, creating it on first sight.
func (s *Set) Add(patientID string, instance rt.Instance, path string) {
	store, ok := s.patients[patientID]
	if !ok {
		store = NewStore(patientID)
		s.patients[patientID] = store
		s.order = append(s.order, patientID)
	}
	store.Add(instance, path)
}

// PatientIDs returns the patient IDs in first-seen order.
func (s *Set) PatientIDs() []string {
	return append([]string(nil), s.order...)
}

// Patient returns the store for one patient, or nil when unknown.
func (s *Set) Patient(patientID string) *Store {
	return s.patients[patientID]
}
