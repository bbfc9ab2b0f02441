package identity

// Reference is a non-owning handle naming an entity that has been or will be
// packed or unpacked. It carries no data and must be resolved through the
// unpacking context before use. The zero Reference is the null reference.
type Reference struct {
	ID InstanceID
}

// NilReference is the null reference.
var NilReference = Reference{}

// Ref builds a Reference to id.
func Ref(id InstanceID) Reference {
	return Reference{ID: id}
}

// IsNil reports whether r is the null reference.
func (r Reference) IsNil() bool {
	return r.ID.IsZero()
}

// String renders the reference as "&type:serial" or "nil".
func (r Reference) String() string {
	if r.IsNil() {
		return "nil"
	}
	return "&" + r.ID.String()
}
