package linker

import (
	"debug/elf"
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"

	"objlink/pkg/utils"
)

// ElfRelocator loads the objects of a static library, lays their
// allocatable sections out at a caller-supplied base address, patches
// relocations through the architecture hook and publishes the symbols
// into the shared symbol table.
//
// Callers drive Relocate in a fixed-point loop until DataChanged
// reports false; symbol addresses can shift between passes while
// COMMON allocations settle.
type ElfRelocator struct {
	arch        ArchRelocator
	symtab      *SymbolTable
	diag        *Diagnostics
	files       []*ObjectFile
	outputData  *ByteBuffer
	dataChanged bool
}

// NewElfRelocator loads the archive or bare object at path and parses
// every member. Initialization errors are fatal; no relocation pass can
// run after a failed load.
func NewElfRelocator(path string, arch ArchRelocator, symtab *SymbolTable, diag *Diagnostics) (*ElfRelocator, error) {
	if arch == nil {
		diag.Print(DiagError, "Object importing not supported for this architecture")
		return nil, errors.New("unsupported architecture")
	}

	entries, err := LoadArchive(path)
	if err != nil {
		diag.Print(DiagError, "Could not load library")
		return nil, err
	}
	if len(entries) == 0 {
		diag.Print(DiagError, "Could not load library")
		return nil, errors.Errorf("no objects in %s", path)
	}

	r := &ElfRelocator{
		arch:       arch,
		symtab:     symtab,
		diag:       diag,
		outputData: NewByteBuffer(),
	}

	for _, entry := range entries {
		obj, err := NewObjectFile(entry)
		if err != nil {
			diag.Print(DiagError, "Could not load object file %s", entry.Name)
			return nil, err
		}
		if obj.Type() != uint16(elf.ET_REL) {
			diag.Print(DiagError, "Unexpected ELF type %d in object file %s", obj.Type(), entry.Name)
			return nil, errors.Errorf("%s: unexpected ELF type %d", entry.Name, obj.Type())
		}
		if obj.SegmentCount() != 0 {
			diag.Print(DiagError, "Unexpected segment count %d in object file %s", obj.SegmentCount(), entry.Name)
			return nil, errors.Errorf("%s: unexpected segment count %d", entry.Name, obj.SegmentCount())
		}

		obj.ParseLoadableSections()
		obj.ParseExportedSymbols()
		r.files = append(r.files, obj)
	}

	return r, nil
}

func (r *ElfRelocator) Files() []*ObjectFile {
	return r.files
}

func (r *ElfRelocator) OutputData() *ByteBuffer {
	return r.outputData
}

func (r *ElfRelocator) DataChanged() bool {
	return r.dataChanged
}

// ExportSymbols publishes every retained symbol into the shared symbol
// table. Labels are seeded with value 0; the first Relocate pass writes
// the real addresses.
func (r *ElfRelocator) ExportSymbols() error {
	ok := true

	for _, file := range r.files {
		for _, sym := range file.ExportedSymbols {
			if sym.Label != nil {
				continue
			}

			sym.Label = r.symtab.GetLabel(sym.Name)
			if sym.Label == nil {
				r.diag.Print(DiagError, "Invalid label name \"%s\"", sym.Name)
				ok = false
				continue
			}
			if sym.Label.Defined {
				r.diag.Print(DiagError, "Label \"%s\" already defined", sym.Name)
				ok = false
				continue
			}

			var rd RelocationData
			rd.SymbolAddress = sym.RelativeAddress
			r.arch.SetSymbolAddress(&rd, sym.RelativeAddress, sym.Type)

			sym.RelativeAddress = rd.SymbolAddress
			sym.Label.SetInfo(rd.TargetSymbolInfo)
			sym.Label.SetUpdateInfo(false)
			sym.Label.IsData = elf.SymType(sym.Type) == elf.STT_OBJECT

			sym.Label.SetValue(0)
			sym.Label.SetDefined(true)
		}
	}

	if !ok {
		return errors.New("symbol export failed")
	}
	return nil
}

// Relocate runs one placement-and-patch pass over all loaded objects
// starting at memoryAddress. It returns the total size consumed.
// Errors inside the pass are accumulated; the pass always runs to
// completion over remaining work.
func (r *ElfRelocator) Relocate(memoryAddress uint32) (uint32, error) {
	oldCrc := crc32.ChecksumIEEE(r.outputData.Bytes())
	r.outputData.Clear()
	r.dataChanged = false

	ok := true
	start := memoryAddress
	addr := memoryAddress

	for _, file := range r.files {
		var fileOk bool
		addr, fileOk = r.relocateFile(file, addr)
		if !fileOk {
			ok = false
		}
	}

	newCrc := crc32.ChecksumIEEE(r.outputData.Bytes())
	if oldCrc != newCrc {
		r.dataChanged = true
	}

	if !ok {
		return addr - start, errors.New("relocation failed")
	}
	return addr - start, nil
}

func (r *ElfRelocator) relocateFile(file *ObjectFile, relocationAddress uint32) (uint32, bool) {
	start := relocationAddress

	// assign an address to every loadable section, input order
	relocationOffsets := make(map[uint32]uint32)
	for _, entry := range file.LoadableSections {
		relocationAddress = utils.AlignTo(relocationAddress, entry.Shdr.AddrAlign)
		relocationOffsets[entry.Index] = relocationAddress
		relocationAddress += entry.Shdr.Size
	}

	dataStart := r.outputData.Size()
	r.outputData.ReserveBytes(relocationAddress - start)

	ok := true
	for _, entry := range file.LoadableSections {
		if entry.Shdr.Type == uint32(elf.SHT_NOBITS) {
			// ReserveBytes already zeroed the space
			continue
		}

		raw, err := file.GetBytesFromShdr(entry.Shdr)
		if err != nil {
			r.diag.Queue(DiagError, "%v", err)
			ok = false
			continue
		}
		sectionData := make([]byte, len(raw))
		copy(sectionData, raw)

		if entry.RelShdr != nil {
			if !r.relocateSection(file, entry, relocationOffsets, sectionData) {
				ok = false
			}
		}

		arrayStart := dataStart + relocationOffsets[entry.Index] - start
		if err := r.outputData.CopyAt(arrayStart, sectionData); err != nil {
			r.diag.Queue(DiagError, "%v", err)
			ok = false
		}
	}

	// resolve symbol addresses now that sections are placed
	for _, sym := range file.ExportedSymbols {
		oldAddress := sym.RelocatedAddress

		switch elf.SectionIndex(sym.Section) {
		case elf.SHN_ABS:
			// address is literal, not relocated
			sym.RelocatedAddress = sym.RelativeAddress
		case elf.SHN_COMMON:
			// needs allocation; RelativeAddress carries the alignment
			commonStart := relocationAddress
			relocationAddress = utils.AlignTo(relocationAddress, sym.RelativeAddress)
			sym.RelocatedAddress = relocationAddress
			relocationAddress += sym.Size
			r.outputData.ReserveBytes(relocationAddress - commonStart)
		default:
			sym.RelocatedAddress = sym.RelativeAddress + relocationOffsets[uint32(sym.Section)]
		}

		if sym.Label != nil {
			sym.Label.SetValue(sym.RelocatedAddress)
		}
		if oldAddress != sym.RelocatedAddress {
			r.dataChanged = true
		}
	}

	return relocationAddress, ok
}

func (r *ElfRelocator) relocateSection(file *ObjectFile, entry *LoadableSection, relocationOffsets map[uint32]uint32, sectionData []byte) bool {
	relBytes, err := file.GetBytesFromShdr(entry.RelShdr)
	if err != nil {
		r.diag.Queue(DiagError, "%v", err)
		return false
	}

	ok := true
	rels := utils.ReadSlice[Rel32](relBytes[:len(relBytes)/Rel32Size*Rel32Size], Rel32Size)
	for i := range rels {
		rel := &rels[i]
		pos := rel.Offset

		symNum := rel.SymbolNum()
		if symNum == 0 {
			r.diag.Queue(DiagWarning, "Invalid symbol num %06X", symNum)
			ok = false
			continue
		}
		if symNum >= uint32(len(file.Syms)) {
			r.diag.Queue(DiagError, "Invalid symbol num %06X", symNum)
			ok = false
			continue
		}
		if pos+4 > uint32(len(sectionData)) {
			r.diag.Queue(DiagError, "Relocation offset %08X exceeds section size", pos)
			ok = false
			continue
		}

		sym := &file.Syms[symNum]

		var rd RelocationData
		rd.Opcode = binary.LittleEndian.Uint32(sectionData[pos:])
		rd.OpcodeOffset = pos + relocationOffsets[entry.Index]
		r.arch.SetSymbolAddress(&rd, sym.Val, sym.Type())

		if elf.SymType(rd.TargetSymbolType) == elf.STT_NOTYPE && sym.Shndx == uint16(elf.SHN_UNDEF) {
			// external reference, resolved through the shared table
			symName := utils.ToLowerASCII(file.StrTableString(sym.Name))

			label := r.symtab.Lookup(symName)
			if label == nil {
				r.diag.Queue(DiagError, "Invalid external symbol %s", symName)
				ok = false
				continue
			}
			if !label.Defined {
				r.diag.Queue(DiagError, "Undefined external symbol %s", symName)
				ok = false
				continue
			}

			rd.RelocationBase = label.Value
			if label.IsData {
				rd.TargetSymbolType = uint8(elf.STT_OBJECT)
			} else {
				rd.TargetSymbolType = uint8(elf.STT_FUNC)
			}
			rd.TargetSymbolInfo = label.Info
		} else {
			rd.RelocationBase = relocationOffsets[uint32(sym.Shndx)] + rd.SymbolAddress
		}

		if err := r.arch.RelocateOpcode(rel.Type(), &rd); err != nil {
			r.diag.Queue(DiagError, "%v", err)
			ok = false
			continue
		}

		binary.LittleEndian.PutUint32(sectionData[pos:], rd.Opcode)
	}

	return ok
}

// WriteSymbols emits every retained symbol into the debug symbol sink.
// Call it only after relocation has converged; before the first
// Relocate pass all addresses are still zero.
func (r *ElfRelocator) WriteSymbols(sink SymbolDataSink) {
	for _, file := range r.files {
		for _, sym := range file.ExportedSymbols {
			sink.AddLabel(sym.RelocatedAddress, sym.Name)

			switch elf.SymType(sym.Type) {
			case elf.STT_OBJECT:
				sink.AddData(sym.RelocatedAddress, sym.Size)
			case elf.STT_FUNC:
				sink.StartFunction(sym.RelocatedAddress)
				sink.EndFunction(sym.RelocatedAddress + sym.Size)
			}
		}
	}
}
