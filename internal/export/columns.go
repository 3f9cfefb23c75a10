// Package export forwards complete intake records to external workflow
// targets.
//
// BoardClient creates one item on a workflow board per record through a
// GraphQL create_item mutation. WorkbookExporter appends one row per record
// to an .xlsx file for offline hand-off. Nop only logs. All three map record
// fields through the same static column table; fields a record lacks are
// left out of the payload.
package export

import (
	"errors"

	"github.com/ironsheep/doc-intake-mcp/internal/aggregate"
	"github.com/ironsheep/doc-intake-mcp/internal/document"
)

// ErrExport is returned for any failed export.
var ErrExport = errors.New("export failed")

// Column maps a record field onto an external column.
type Column struct {
	Field  string // record field name
	ID     string // board column id
	Header string // workbook header
}

// DefaultColumns is the static field -> column table.
var DefaultColumns = []Column{
	{Field: document.FieldName, ID: "text_name", Header: "Name"},
	{Field: document.FieldIdentityCardNo, ID: "text_id_no", Header: "ID Number"},
	{Field: document.FieldContactName, ID: "text_contact", Header: "Contact"},
	{Field: document.FieldContactPhone, ID: "phone", Header: "Phone"},
	{Field: document.FieldMakeModel, ID: "text_make_model", Header: "Make/Model"},
	{Field: document.FieldEngineNo, ID: "text_engine_no", Header: "Engine No."},
	{Field: document.FieldChassisNo, ID: "text_chassis_no", Header: "Chassis No."},
	{Field: document.FieldVehicleNo, ID: "text_vehicle_no", Header: "Vehicle No."},
	{Field: document.FieldOriginalRegistrationDate, ID: "text_registration_date", Header: "Original Registration Date"},
}

// ColumnValues maps rec onto cols, keyed by column id. Absent fields are
// omitted.
func ColumnValues(rec aggregate.Record, cols []Column) map[string]string {
	out := make(map[string]string, len(cols))
	for _, c := range cols {
		if v, ok := rec.Get(c.Field); ok && v != "" {
			out[c.ID] = v
		}
	}
	return out
}

// ItemName is the display name for rec: its Name field, or the person key
// when the name is missing.
func ItemName(rec aggregate.Record) string {
	if name, ok := rec.Get(document.FieldName); ok && name != "" {
		return name
	}
	return string(rec.Key)
}
