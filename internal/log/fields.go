package log

// FieldComponent tags every line with the emitting component.
const FieldComponent = "component"

// Standard component names, one per binary.
const (
	ComponentApp      = "app"
	ComponentRetainer = "retainer"
	ComponentMirror   = "mirror"
)
