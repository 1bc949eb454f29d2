package anonymize

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Anonymizer applies a resolved security profile to datasets.
type Anonymizer struct {
	profile   *Profile
	clearTags []tag.Tag
	dropTags  map[tag.Tag]bool
}

// New resolves the profile's attribute keywords against the dictionary.
// Unknown keywords fail loudly; a profile that silently skips attributes
// would leak identity.
func New(profile *Profile) (*Anonymizer, error) {
	if profile == nil {
		profile = DefaultProfile()
	}

	a := &Anonymizer{profile: profile, dropTags: make(map[tag.Tag]bool)}

	for _, keyword := range profile.effectiveClear() {
		info, err := tag.FindByName(keyword)
		if err != nil {
			return nil, fmt.Errorf("security profile %s: unknown attribute %q", profile.Name, keyword)
		}
		a.clearTags = append(a.clearTags, info.Tag)
	}
	for _, keyword := range profile.Remove {
		info, err := tag.FindByName(keyword)
		if err != nil {
			return nil, fmt.Errorf("security profile %s: unknown attribute %q", profile.Name, keyword)
		}
		a.dropTags[info.Tag] = true
	}

	return a, nil
}

// AnonymizeInPlace replaces the patient identity and applies the profile's
// clear and remove lists to the dataset.
func (a *Anonymizer) AnonymizeInPlace(ds *dicom.Dataset, newPatientID, newPatientName string) error {
	if err := setString(ds, tag.PatientID, newPatientID); err != nil {
		return err
	}
	if err := setString(ds, tag.PatientName, newPatientName); err != nil {
		return err
	}

	blank := make(map[tag.Tag]bool, len(a.clearTags))
	for _, t := range a.clearTags {
		blank[t] = true
	}

	kept := ds.Elements[:0]
	for _, e := range ds.Elements {
		if a.dropTags[e.Tag] {
			continue
		}
		if blank[e.Tag] {
			value, err := dicom.NewValue([]string{""})
			if err != nil {
				return fmt.Errorf("failed to blank %s: %w", e.Tag, err)
			}
			e.Value = value
		}
		kept = append(kept, e)
	}
	ds.Elements = kept

	return nil
}

// setString replaces the element's value, appending the element when the
// dataset does not carry it yet.
func setString(ds *dicom.Dataset, t tag.Tag, v string) error {
	value, err := dicom.NewValue([]string{v})
	if err != nil {
		return fmt.Errorf("failed to build value for %s: %w", t, err)
	}
	if e, findErr := ds.FindElementByTag(t); findErr == nil {
		e.Value = value
		return nil
	}
	e, err := dicom.NewElement(t, []string{v})
	if err != nil {
		return fmt.Errorf("failed to build element for %s: %w", t, err)
	}
	ds.Elements = append(ds.Elements, e)
	return nil
}
