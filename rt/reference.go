package rt

// InstanceReference points at another instance by modality and UID without
// owning it. Lookups through a reference go back to the collected store or a
// built tree.
type InstanceReference struct {
	Modality    Modality
	InstanceUID string
}
