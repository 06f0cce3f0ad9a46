package types

// EngineInfo reports a running engine's identities and facilities.
// Clients fetch it once after connecting; the component identities in
// it are fixed for the engine's lifetime.
type EngineInfo struct {
	Name    string `cramberry:"1"`
	Version string `cramberry:"2"`
	// Router is the delegated router's own identity. Calling it
	// directly always fails; it exists so monitors can recognize the
	// component in call traces.
	Router Address `cramberry:"3"`
	// Shim is the execution shim's own identity.
	Shim Address `cramberry:"4"`
	// Aggregator is the batch aggregator's call-target identity.
	Aggregator Address `cramberry:"5"`
	// Capabilities this environment provides. Drives sentinel backend
	// selection.
	Capabilities Capabilities `cramberry:"6"`
}
