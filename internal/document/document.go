// Package document defines the document kinds, extracted field sets and the
// per-session upload state shared by every stage of the intake pipeline.
//
// # Field Sets
//
// A FieldSet is produced once per extraction and never mutated afterwards.
// Fields that were not found in the OCR output are simply absent; a FieldSet
// never stores an empty string. Use With to derive a modified copy.
//
// # Upload State
//
// A session moves through AwaitingIdentity, AwaitingLicense, AwaitingLogCard
// and Complete. The state is computed from the set of kinds that have been
// contributed successfully, so a failed upload can never advance it.
package document

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies one of the three supported documents.
type Kind string

const (
	KindIdentityCard   Kind = "identity_card"
	KindDriversLicense Kind = "drivers_license"
	KindLogCard        Kind = "log_card"
)

// Kinds lists every supported kind in the order uploads are expected.
var Kinds = []Kind{KindIdentityCard, KindDriversLicense, KindLogCard}

// ParseKind validates a caller-declared kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown document kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindIdentityCard, KindDriversLicense, KindLogCard:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (k Kind) String() string { return string(k) }

// Label returns the human readable name used in user-facing messages.
func (k Kind) Label() string {
	switch k {
	case KindIdentityCard:
		return "identity card"
	case KindDriversLicense:
		return "driver's license"
	case KindLogCard:
		return "vehicle log card"
	}
	return string(k)
}

// Field names produced by the extractors.
const (
	FieldIdentityCardNo = "Identity_Card_No"
	FieldName           = "Name"
	FieldRace           = "Race"
	FieldDateOfBirth    = "Date_of_birth"
	FieldSex            = "Sex"
	FieldPlaceOfBirth   = "Place_of_birth"

	FieldLicenseNumber = "License_Number"
	FieldBirthDate     = "Birth_Date"
	FieldIssueDate     = "Issue_Date"

	FieldVehicleNo                = "Vehicle_No"
	FieldVehicleType              = "Vehicle_Type"
	FieldMakeModel                = "Make_Model"
	FieldYearOfManufacture        = "Year_of_Manufacture"
	FieldChassisNo                = "Chassis_No"
	FieldEngineNo                 = "Engine_No"
	FieldEngineCapacity           = "Engine_Capacity"
	FieldRoadTaxExpiryDate        = "Road_Tax_Expiry_Date"
	FieldCOEExpiryDate            = "COE_Expiry_Date"
	FieldOriginalRegistrationDate = "Original_Registration_Date"
	FieldLifespanExpiryDate       = "Lifespan_Expiry_Date"
	FieldPQPPaid                  = "PQP_Paid"
	FieldInspectionDueDate        = "Inspection_Due_Date"
	FieldIntendedTransferDate     = "Intended_Transfer_Date"

	// Contact fields are supplied by the chat layer, not by OCR.
	FieldContactName  = "Contact_Name"
	FieldContactPhone = "Contact_Phone"
)

// FieldNames returns the field names a kind's extractor may produce.
func FieldNames(k Kind) []string {
	switch k {
	case KindIdentityCard:
		return []string{FieldIdentityCardNo, FieldName, FieldRace, FieldDateOfBirth, FieldSex, FieldPlaceOfBirth}
	case KindDriversLicense:
		return []string{FieldLicenseNumber, FieldName, FieldBirthDate, FieldIssueDate}
	case KindLogCard:
		return []string{
			FieldVehicleNo, FieldVehicleType, FieldMakeModel, FieldYearOfManufacture,
			FieldChassisNo, FieldEngineNo, FieldEngineCapacity, FieldRoadTaxExpiryDate,
			FieldCOEExpiryDate, FieldOriginalRegistrationDate, FieldLifespanExpiryDate,
			FieldPQPPaid, FieldInspectionDueDate, FieldIntendedTransferDate,
		}
	}
	return nil
}

// FieldSet is the immutable, kind-tagged result of parsing one document.
type FieldSet struct {
	kind   Kind
	fields map[string]string
}

// NewFieldSet builds a FieldSet, dropping blank values so that absent fields
// are never represented as empty strings.
func NewFieldSet(kind Kind, fields map[string]string) FieldSet {
	fs := FieldSet{kind: kind, fields: make(map[string]string, len(fields))}
	for name, value := range fields {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		fs.fields[name] = value
	}
	return fs
}

// Kind returns the document kind this set was extracted from.
func (fs FieldSet) Kind() Kind { return fs.kind }

// Get returns the value for name and whether it was present.
func (fs FieldSet) Get(name string) (string, bool) {
	v, ok := fs.fields[name]
	return v, ok
}

// Has reports whether name is present.
func (fs FieldSet) Has(name string) bool {
	_, ok := fs.fields[name]
	return ok
}

// Len returns the number of present fields.
func (fs FieldSet) Len() int { return len(fs.fields) }

// Names returns the present field names in sorted order.
func (fs FieldSet) Names() []string {
	names := make([]string, 0, len(fs.fields))
	for name := range fs.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the present fields.
func (fs FieldSet) Map() map[string]string {
	out := make(map[string]string, len(fs.fields))
	for k, v := range fs.fields {
		out[k] = v
	}
	return out
}

// With returns a new FieldSet with name set to value. A blank value removes
// the field. The receiver is left untouched.
func (fs FieldSet) With(name, value string) FieldSet {
	m := fs.Map()
	m[name] = value
	return NewFieldSet(fs.kind, m)
}

// Contact is optional person metadata a chat layer may attach to a session.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Fields returns the contact as record fields, omitting blanks.
func (c Contact) Fields() map[string]string {
	out := make(map[string]string, 2)
	if v := strings.TrimSpace(c.Name); v != "" {
		out[FieldContactName] = v
	}
	if v := strings.TrimSpace(c.Phone); v != "" {
		out[FieldContactPhone] = v
	}
	return out
}
