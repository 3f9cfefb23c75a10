package extract

import "github.com/ironsheep/doc-intake-mcp/internal/document"

// logDate matches "05 Mar 2019" and "05/03/2019".
const logDate = `(\d{1,2}\s+[A-Z]{3}\s+\d{4}|\d{1,2}/\d{1,2}/\d{4})`

// LogCardRules parse the plain-text OCR of a vehicle log card. Every rule is
// optional.
var LogCardRules = Rules{
	newRule(document.FieldVehicleNo, `vehicle\s*no\.?`, `([A-Z]{1,3}\d{1,4}[A-Z]?)\b`, upper),
	newRule(document.FieldVehicleType, `vehicle\s*type`, `([^\n]+)`, collapseSpaces),
	newRule(document.FieldMakeModel, `make\s*/\s*model`, `([^\n]+)`, collapseSpaces),
	newRule(document.FieldYearOfManufacture, `year\s*of\s*manufacture`, `(\d{4})`, nil),
	newRule(document.FieldChassisNo, `chassis\s*no\.?`, `([A-Z0-9-]{5,})`, upper),
	newRule(document.FieldEngineNo, `engine\s*no\.?`, `([A-Z0-9-]{4,})`, upper),
	newRule(document.FieldEngineCapacity, `engine\s*capacity`, `(\d[\d,]*\s*cc)\b`, stripSpaces),
	newRule(document.FieldRoadTaxExpiryDate, `road\s*tax\s*expiry\s*date`, logDate, collapseSpaces),
	newRule(document.FieldCOEExpiryDate, `coe\s*expiry\s*date`, logDate, collapseSpaces),
	newRule(document.FieldOriginalRegistrationDate, `original\s*registration\s*date`, logDate, collapseSpaces),
	newRule(document.FieldLifespanExpiryDate, `lifespan\s*expiry\s*date`, logDate, collapseSpaces),
	newRule(document.FieldPQPPaid, `pqp\s*paid`, `(\$\s*[\d,]+(?:\.\d{2})?)`, stripSpaces),
	newRule(document.FieldInspectionDueDate, `inspection\s*due\s*date`, logDate, collapseSpaces),
	newRule(document.FieldIntendedTransferDate, `intended\s*transfer\s*date`, logDate, collapseSpaces),
}

func extractLogCard(text string) map[string]string {
	return LogCardRules.Apply(text)
}
