package rt

import (
	"fmt"

	"github.com/suyashkumar/dicom"
)

// MachineMapping holds the treatment-machine substitution tables: explicit
// renames by machine name and fallback defaults by manufacturer model.
type MachineMapping struct {
	Renames  map[string]string // fromName -> toName
	Defaults map[string]string // modelName -> machineName
}

// Apply substitutes the plan's treatment machine name in place. An explicit
// rename wins over a model default. OriginalMachineName is set only when a
// substitution actually occurred, which later signals the send path to
// rewrite the plan file before transmission.
func (m MachineMapping) Apply(p *Plan) {
	mapped, ok := m.Renames[p.MachineName]
	if !ok {
		mapped, ok = m.Defaults[p.Model]
	}
	if !ok || mapped == "" || mapped == p.MachineName {
		return
	}

	p.OriginalMachineName = p.MachineName
	p.MachineName = mapped
	for i := range p.Beams {
		p.Beams[i].TreatmentMachineName = mapped
	}
}

// ApplyMachineNameToDataset sets the Treatment Machine Name of every beam in
// the dataset's Beam Sequence. Used to produce the rewritten plan copy that
// is transmitted when a machine substitution was applied.
func ApplyMachineNameToDataset(ds *dicom.Dataset, machineName string) error {
	seq, err := ds.FindElementByTag(tagBeamSequence)
	if err != nil {
		return fmt.Errorf("plan dataset has no beam sequence: %w", err)
	}

	items := sequenceItems(seq)
	if len(items) == 0 {
		return fmt.Errorf("plan dataset has an empty beam sequence")
	}

	for _, item := range items {
		e := itemElement(item, tagTreatmentMachineName)
		if e == nil {
			return fmt.Errorf("beam item has no treatment machine name element")
		}
		value, err := dicom.NewValue([]string{machineName})
		if err != nil {
			return fmt.Errorf("failed to build machine name value: %w", err)
		}
		e.Value = value
	}

	return nil
}
