package linker

// LoadableSection is an allocatable PROGBITS or NOBITS section together
// with its original section index and, if present, the SHT_REL section
// whose Info field names it.
type LoadableSection struct {
	Shdr    *Shdr32
	Index   uint32
	RelShdr *Shdr32
}

// ExportedSymbol is an OBJECT or FUNC symbol retained for publication
// into the shared symbol table.
type ExportedSymbol struct {
	Name             string // lowercased
	RelativeAddress  uint32
	Section          uint16
	Size             uint32
	Type             uint8
	RelocatedAddress uint32
	Label            *Label
}
