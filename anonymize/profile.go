// Package anonymize de-identifies datasets in place per a named security
// profile and keeps the deduplicated audit trail mapping original to
// anonymized patient identities.
package anonymize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Option names a profile toggle.
const (
	OptionCleanDescriptions    = "clean-descriptions"
	OptionRetainDeviceIdentity = "retain-device-identity"
)

// Profile is a security profile: which attributes are blanked and which are
// dropped entirely, identified by their dictionary keywords, plus named
// options that adjust the lists.
type Profile struct {
	Name    string          `yaml:"name"`
	Clear   []string        `yaml:"clear"`
	Remove  []string        `yaml:"remove"`
	Options map[string]bool `yaml:"options"`
}

// LoadProfile reads a security profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read security profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse security profile %s: %w", path, err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("security profile %s has no name", path)
	}
	return &p, nil
}

// DefaultProfile returns the built-in basic application level profile.
func DefaultProfile() *Profile {
	return &Profile{
		Name: "basic",
		Clear: []string{
			"PatientBirthDate",
			"PatientBirthTime",
			"PatientAge",
			"PatientAddress",
			"PatientTelephoneNumbers",
			"OtherPatientIDs",
			"PatientComments",
			"InstitutionAddress",
			"InstitutionalDepartmentName",
			"StationName",
			"ReferringPhysicianName",
			"PerformingPhysicianName",
			"OperatorsName",
			"PhysiciansOfRecord",
			"AccessionNumber",
		},
		Remove: []string{
			"OtherPatientIDsSequence",
		},
	}
}

// effectiveClear applies the profile options to the clear list.
func (p *Profile) effectiveClear() []string {
	out := append([]string(nil), p.Clear...)
	if p.Options[OptionCleanDescriptions] {
		out = append(out, "StudyDescription", "SeriesDescription")
	}
	if p.Options[OptionRetainDeviceIdentity] {
		out = without(out, "StationName", "DeviceSerialNumber")
	}
	return out
}

func without(list []string, names ...string) []string {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var out []string
	for _, s := range list {
		if !drop[s] {
			out = append(out, s)
		}
	}
	return out
}
