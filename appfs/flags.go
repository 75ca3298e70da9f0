package appfs

// Flags is a bitset over the appfs executable attribute flags, stored in
// exec.o_flags.
type Flags uint32

const (
	FlagIsFlash Flags = 1 << iota
	FlagIsStartup
	FlagIsAuthenticated
	FlagIsReplace
	FlagIsOrphan
	FlagIsUnique
	FlagIsCodeExternal
	FlagIsDataExternal
	FlagIsCodeTightlyCoupled
	FlagIsDataTightlyCoupled
)

// Has reports whether all bits in want are set.
func (f Flags) Has(want Flags) bool { return f&want == want }

// Set returns f with the given bits set.
func (f Flags) Set(bits Flags) Flags { return f | bits }

// Clear returns f with the given bits cleared.
func (f Flags) Clear(bits Flags) Flags { return f &^ bits }
