package linker

import (
	"debug/elf"

	"github.com/pkg/errors"

	"objlink/pkg/utils"
)

// ObjectFile is one parsed ELF-32 relocatable object. It owns its byte
// image; sections and symbols are views into it.
type ObjectFile struct {
	Name       string
	Data       *ByteBuffer
	Ehdr       Ehdr32
	SecHdrs    []Shdr32
	Syms       []Sym32
	ShStrTab   []byte
	SymStrTab  []byte

	LoadableSections []*LoadableSection
	ExportedSymbols  []*ExportedSymbol
}

// NewObjectFile parses the ELF header, section table, symbol table and
// string tables of entry. Only little-endian ELF-32 is accepted.
func NewObjectFile(entry ArEntry) (*ObjectFile, error) {
	f := &ObjectFile{
		Name: entry.Name,
		Data: entry.Data,
	}
	content := entry.Data.Bytes()

	if len(content) < Ehdr32Size {
		return nil, errors.Errorf("%s: file is smaller than the ELF header", f.Name)
	}
	if !CheckElfMagic(content) {
		return nil, errors.Errorf("%s: invalid magic number", f.Name)
	}

	utils.Read[Ehdr32](content, &f.Ehdr)

	if elf.Class(f.Ehdr.Ident[elf.EI_CLASS]) != elf.ELFCLASS32 {
		return nil, errors.Errorf("%s: not a 32-bit object", f.Name)
	}
	if elf.Data(f.Ehdr.Ident[elf.EI_DATA]) != elf.ELFDATA2LSB {
		return nil, errors.Errorf("%s: not a little-endian object", f.Name)
	}

	numSecs := int(f.Ehdr.ShNum)
	end := int(f.Ehdr.ShOff) + numSecs*Shdr32Size
	if end > len(content) || end < int(f.Ehdr.ShOff) {
		return nil, errors.Errorf("%s: section header table exceeds file size", f.Name)
	}

	secHdrContent := content[f.Ehdr.ShOff:]
	f.SecHdrs = make([]Shdr32, numSecs)
	for i := 0; i < numSecs; i++ {
		utils.Read[Shdr32](secHdrContent, &f.SecHdrs[i])
		secHdrContent = secHdrContent[Shdr32Size:]
	}

	shStrndx := uint32(f.Ehdr.ShStrndx)
	if shStrndx != uint32(elf.SHN_UNDEF) {
		strTab, err := f.GetBytesFromIdx(shStrndx)
		if err != nil {
			return nil, err
		}
		f.ShStrTab = strTab
	}

	if err := f.parseSymTab(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *ObjectFile) Type() uint16 {
	return f.Ehdr.Type
}

func (f *ObjectFile) SegmentCount() int {
	return int(f.Ehdr.PhNum)
}

func (f *ObjectFile) SectionCount() int {
	return len(f.SecHdrs)
}

func (f *ObjectFile) SymbolCount() int {
	return len(f.Syms)
}

func (f *ObjectFile) GetBytesFromShdr(s *Shdr32) ([]byte, error) {
	if s.Type == uint32(elf.SHT_NOBITS) {
		return nil, nil
	}
	end := uint64(s.Offset) + uint64(s.Size)
	if end > uint64(f.Data.Size()) {
		return nil, errors.Errorf("%s: section data exceeds file size", f.Name)
	}
	return f.Data.Bytes()[s.Offset:end], nil
}

func (f *ObjectFile) GetBytesFromIdx(idx uint32) ([]byte, error) {
	if idx >= uint32(len(f.SecHdrs)) {
		return nil, errors.Errorf("%s: section index %d exceeds section count", f.Name, idx)
	}
	return f.GetBytesFromShdr(&f.SecHdrs[idx])
}

func (f *ObjectFile) findSectionHdr(secType uint32) *Shdr32 {
	for i := range f.SecHdrs {
		if f.SecHdrs[i].Type == secType {
			return &f.SecHdrs[i]
		}
	}
	return nil
}

func (f *ObjectFile) parseSymTab() error {
	symTabHdr := f.findSectionHdr(uint32(elf.SHT_SYMTAB))
	if symTabHdr == nil {
		return nil
	}

	bs, err := f.GetBytesFromShdr(symTabHdr)
	if err != nil {
		return err
	}
	nums := len(bs) / Sym32Size
	f.Syms = make([]Sym32, nums)
	for i := 0; i < nums; i++ {
		utils.Read[Sym32](bs, &f.Syms[i])
		bs = bs[Sym32Size:]
	}

	strTab, err := f.GetBytesFromIdx(symTabHdr.Link)
	if err != nil {
		return err
	}
	f.SymStrTab = strTab
	return nil
}

// StrTableString decodes a NUL-terminated string from the symbol string
// table.
func (f *ObjectFile) StrTableString(offset uint32) string {
	return ElfGetName(f.SymStrTab, offset)
}

// ParseLoadableSections scans for allocatable PROGBITS/NOBITS sections
// and pairs each with its SHT_REL sibling, keeping input order.
func (f *ObjectFile) ParseLoadableSections() {
	for i := range f.SecHdrs {
		shdr := &f.SecHdrs[i]
		if shdr.Flags&uint32(elf.SHF_ALLOC) == 0 {
			continue
		}
		t := elf.SectionType(shdr.Type)
		if t != elf.SHT_PROGBITS && t != elf.SHT_NOBITS {
			continue
		}

		sec := &LoadableSection{
			Shdr:  shdr,
			Index: uint32(i),
		}
		for k := range f.SecHdrs {
			relHdr := &f.SecHdrs[k]
			if relHdr.Type != uint32(elf.SHT_REL) {
				continue
			}
			if relHdr.Info != uint32(i) {
				continue
			}
			sec.RelShdr = relHdr
			break
		}
		f.LoadableSections = append(f.LoadableSections, sec)
	}
}

// ParseExportedSymbols retains OBJECT and FUNC symbols with lowercased
// names, keeping symbol table order.
func (f *ObjectFile) ParseExportedSymbols() {
	for i := range f.Syms {
		sym := &f.Syms[i]
		t := sym.Type()
		if elf.SymType(t) != elf.STT_OBJECT && elf.SymType(t) != elf.STT_FUNC {
			continue
		}
		f.ExportedSymbols = append(f.ExportedSymbols, &ExportedSymbol{
			Name:            utils.ToLowerASCII(f.StrTableString(sym.Name)),
			RelativeAddress: sym.Val,
			Section:         sym.Shndx,
			Size:            sym.Size,
			Type:            t,
		})
	}
}
