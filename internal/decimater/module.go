package decimater

const (
	// Illegal is returned by CollapsePriority to veto a collapse.
	Illegal = -1.0
	// Legal is what binary modules return when they do not object.
	Legal = 0.0
)

// Module contributes to the choice of the next collapse. A binary module only vetoes;
// exactly one non-binary module per engine supplies the cost.
type Module interface {
	Name() string
	IsBinary() bool
	Initialize(e *Engine) error
	CollapsePriority(ci *CollapseInfo) float64
	PostprocessCollapse(ci *CollapseInfo)
}

// Preprocessor is implemented by modules that must see a collapse before the mesh changes.
type Preprocessor interface {
	PreprocessCollapse(ci *CollapseInfo)
}

// PassResetter is implemented by modules holding state that lasts one Decimate call.
type PassResetter interface {
	ResetPass()
}
