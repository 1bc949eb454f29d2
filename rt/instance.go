package rt

import (
	"fmt"
	"strings"
)

// ApprovalStatus is the review state of a plan.
type ApprovalStatus int

const (
	ApprovalUnknown ApprovalStatus = iota
	ApprovalApproved
	ApprovalUnApproved
	ApprovalRejected
)

func (s ApprovalStatus) String() string {
	switch s {
	case ApprovalApproved:
		return "APPROVED"
	case ApprovalUnApproved:
		return "UNAPPROVED"
	case ApprovalRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// ApprovalStatusFromCode maps the Approval Status (300E,0002) value.
func ApprovalStatusFromCode(code string) ApprovalStatus {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "APPROVED":
		return ApprovalApproved
	case "UNAPPROVED":
		return ApprovalUnApproved
	case "REJECTED":
		return ApprovalRejected
	default:
		return ApprovalUnknown
	}
}

// Core holds the identity every instance carries: which patient, study and
// series it belongs to and its own UID.
type Core struct {
	PatientID   string
	InstanceUID string
	StudyUID    string
	SeriesUID   string
}

// Instance is a classified RT DICOM object. Concrete variants add the
// modality-specific attributes and cross-references.
type Instance interface {
	Core() *Core
	Modality() Modality
	Label() string
}

// Ref returns a reference to the given instance.
func Ref(i Instance) InstanceReference {
	return InstanceReference{Modality: i.Modality(), InstanceUID: i.Core().InstanceUID}
}

// Describe returns the full descriptive dump of an instance for diagnostics:
// modality, label and all identifying UIDs.
func Describe(i Instance) string {
	c := i.Core()
	return fmt.Sprintf("%s %q patient=%s study=%s series=%s instance=%s",
		i.Modality(), i.Label(), c.PatientID, c.StudyUID, c.SeriesUID, c.InstanceUID)
}

// Beam is a sub-entity of a plan, not an instance of its own.
type Beam struct {
	Name                 string
	Number               int
	DeliveryType         string
	TreatmentMachineName string

	// DRRReferences lists the RT images used as digitally reconstructed
	// radiographs for this beam.
	DRRReferences []InstanceReference
}

// Plan is an RT Plan instance. It is the only instance whose machine-name
// fields change after construction: a mapping or default substitution sets
// OriginalMachineName before re-transmission.
type Plan struct {
	Identity Core

	PlanLabel    string
	PlanIntent   string
	Approval     ApprovalStatus
	StructureSet *InstanceReference // nil when the plan references none
	Beams        []Beam
	Manufacturer string
	Model        string
	MachineName  string

	// OriginalMachineName is set only when a remap or default was applied.
	OriginalMachineName string
}

func (p *Plan) Core() *Core        { return &p.Identity }
func (p *Plan) Modality() Modality { return ModalityPlan }
func (p *Plan) Label() string      { return p.PlanLabel }

// UsesVarianTreatmentUnit reports whether the plan's treatment machine
// manufacturer identifies a Varian unit.
func (p *Plan) UsesVarianTreatmentUnit() bool {
	return strings.Contains(strings.ToLower(p.Manufacturer), "varian")
}

// StructureSet is an RT Structure Set instance.
type StructureSet struct {
	Identity Core

	SetLabel            string
	FrameOfReferenceUID string

	// ReferencedImages is the deduplicated set of every image referenced by
	// any contour in any ROI.
	ReferencedImages []InstanceReference
}

func (s *StructureSet) Core() *Core        { return &s.Identity }
func (s *StructureSet) Modality() Modality { return ModalityStructureSet }
func (s *StructureSet) Label() string      { return s.SetLabel }

// Dose is an RT Dose instance.
type Dose struct {
	Identity Core

	Plan          *InstanceReference // nil when no plan is referenced
	StructureSet  *InstanceReference
	SummationType string
}

func (d *Dose) Core() *Core        { return &d.Identity }
func (d *Dose) Modality() Modality { return ModalityDose }
func (d *Dose) Label() string      { return d.SummationType }

// CTImage is a CT slice instance.
type CTImage struct {
	Identity Core

	ImageType           []string
	FrameOfReferenceUID string
}

func (i *CTImage) Core() *Core        { return &i.Identity }
func (i *CTImage) Modality() Modality { return ModalityCT }
func (i *CTImage) Label() string      { return strings.Join(i.ImageType, "\\") }

// ConeBeamCTImage is an on-treatment-unit CT slice that references the plan
// it was acquired to verify.
type ConeBeamCTImage struct {
	Identity Core

	ImageType           []string
	FrameOfReferenceUID string
	Plan                InstanceReference
}

func (i *ConeBeamCTImage) Core() *Core        { return &i.Identity }
func (i *ConeBeamCTImage) Modality() Modality { return ModalityCT }
func (i *ConeBeamCTImage) Label() string      { return strings.Join(i.ImageType, "\\") }

// MRImage is an MR slice instance.
type MRImage struct {
	Identity Core

	ImageType           []string
	FrameOfReferenceUID string
}

func (i *MRImage) Core() *Core        { return &i.Identity }
func (i *MRImage) Modality() Modality { return ModalityMR }
func (i *MRImage) Label() string      { return strings.Join(i.ImageType, "\\") }

// PETImage is a PET slice instance.
type PETImage struct {
	Identity Core

	ImageType           []string
	FrameOfReferenceUID string
}

func (i *PETImage) Core() *Core        { return &i.Identity }
func (i *PETImage) Modality() Modality { return ModalityPET }
func (i *PETImage) Label() string      { return strings.Join(i.ImageType, "\\") }

// RTImage is a portal or DRR image instance, optionally tied to a plan and a
// beam.
type RTImage struct {
	Identity Core

	ImageLabel           string
	Plan                 *InstanceReference
	ReferencedBeamNumber int // -1 when absent
	InstanceNumber       int
}

func (i *RTImage) Core() *Core        { return &i.Identity }
func (i *RTImage) Modality() Modality { return ModalityRTImage }
func (i *RTImage) Label() string      { return i.ImageLabel }

// Registration is a spatial registration between two frames of reference.
type Registration struct {
	Identity Core

	RegLabel               string
	FrameOfReference       string // the registration's own frame
	SecondFrameOfReference string // the frame registered against
}

func (r *Registration) Core() *Core        { return &r.Identity }
func (r *Registration) Modality() Modality { return ModalityRegistration }
func (r *Registration) Label() string      { return r.RegLabel }

// TreatmentRecord is a delivered-fraction record for one beam of a plan.
type TreatmentRecord struct {
	Identity Core

	Plan                  InstanceReference
	ReferencedBeamNumber  int
	BeamName              string
	CurrentFractionNumber int
}

func (t *TreatmentRecord) Core() *Core        { return &t.Identity }
func (t *TreatmentRecord) Modality() Modality { return ModalityTreatmentRecord }
func (t *TreatmentRecord) Label() string {
	return fmt.Sprintf("%s fraction %d", t.BeamName, t.CurrentFractionNumber)
}
