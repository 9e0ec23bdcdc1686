package cache

// Keyer generates cache keys for pipeline artifacts.
type Keyer interface {
	// CompositeKey derives the key for a rendered composite from the
	// content hash of the validated planes and the render options.
	CompositeKey(planesHash string, opts CompositeKeyOpts) string

	// StackKey derives the key for an encoded stack artifact.
	StackKey(planesHash string, opts StackKeyOpts) string
}

// CompositeKeyOpts captures every input that changes the composite bytes.
type CompositeKeyOpts struct {
	Policies    []string // canonical policy string per plane, in role order
	Assignments []string // "role:hex:enabled" per plane, in role order
}

// StackKeyOpts captures every input that changes the stack bytes.
type StackKeyOpts struct {
	IncludeComposite bool
	Policies         []string // only relevant when the composite is included
	Assignments      []string
}

// DefaultKeyer hashes the option structs into namespaced keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// CompositeKey generates a key for composite raster caching.
func (k *DefaultKeyer) CompositeKey(planesHash string, opts CompositeKeyOpts) string {
	return hashKey("composite", planesHash, opts)
}

// StackKey generates a key for stack artifact caching.
func (k *DefaultKeyer) StackKey(planesHash string, opts StackKeyOpts) string {
	return hashKey("stack", planesHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
