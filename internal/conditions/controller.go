// file: internal/conditions/controller.go

package conditions

// PropertyStore is the property value store backing a form.
type PropertyStore interface {
	PropertyValue(id PropertyID) (any, bool)
	// PropertyValues returns a snapshot the caller may read freely.
	PropertyValues() map[string]any
	UpdatePropertyValue(id PropertyID, value any)
}

// ControlCatalog answers control metadata lookups.
// Control returns the column sub-control for column-qualified ids.
type ControlCatalog interface {
	Control(id PropertyID) *Control
	Controls() []*Control
}

// DatasetMetadataSource supplies the schemas of the node's input data.
type DatasetMetadataSource interface {
	DatasetMetadata() []DatasetSchema
}

// StateSink stores the computed control states and error messages.
type StateSink interface {
	ControlStates() ControlStates
	SetControlStates(states ControlStates)
	UpdateErrorMessage(id PropertyID, msg ErrorMessage)
	ErrorMessage(id PropertyID) ErrorMessage
}

// InitialValueSource is implemented by controllers that remember the values
// a form was opened with. A cell's stored value never collides with itself
// in colNotExists.
type InitialValueSource interface {
	InitialPropertyValue(id PropertyID) (any, bool)
}

// Controller is everything the engine needs from the surrounding form.
type Controller interface {
	PropertyStore
	ControlCatalog
	DatasetMetadataSource
	StateSink
	RequiredParameters() []string
}
