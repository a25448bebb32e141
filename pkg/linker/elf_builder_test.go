package linker

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testSection describes one section fed to elfBuilder.build. Section indices
// in the built file start at 1 (index 0 is the null section); the symtab
// and strtab are appended after the user sections.
type testSection struct {
	typ       uint32
	flags     uint32
	data      []byte
	size      uint32 // used instead of len(data) for SHT_NOBITS
	addrAlign uint32
	info      uint32 // for SHT_REL: index of the patched section
}

type testSymbol struct {
	name  string
	value uint32
	size  uint32
	info  uint8
	shndx uint16
}

type elfBuilder struct {
	machine uint16
	typ     uint16
	phNum   uint16
	class   uint8
	data    uint8
	secs    []testSection
	syms    []testSymbol
}

func newElfBuilder(machine elf.Machine) *elfBuilder {
	return &elfBuilder{
		machine: uint16(machine),
		typ:     uint16(elf.ET_REL),
		class:   uint8(elf.ELFCLASS32),
		data:    uint8(elf.ELFDATA2LSB),
	}
}

func (b *elfBuilder) addSection(sec testSection) int {
	b.secs = append(b.secs, sec)
	return len(b.secs) // index 0 is the null section
}

// addSymbol returns the symbol table index of the added symbol, counting
// the null entry at index 0.
func (b *elfBuilder) addSymbol(sym testSymbol) uint32 {
	b.syms = append(b.syms, sym)
	return uint32(len(b.syms))
}

func symInfo(bind elf.SymBind, typ elf.SymType) uint8 {
	return uint8(bind)<<4 | uint8(typ)
}

func relData(t *testing.T, rels ...Rel32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, rels))
	return buf.Bytes()
}

func relEntry(offset, symNum, relType uint32) Rel32 {
	return Rel32{Offset: offset, Info: symNum<<8 | relType&0xFF}
}

func (b *elfBuilder) build(t *testing.T) []byte {
	t.Helper()

	strTab := []byte{0}
	nameOffsets := make([]uint32, len(b.syms))
	for i, sym := range b.syms {
		nameOffsets[i] = uint32(len(strTab))
		strTab = append(strTab, sym.name...)
		strTab = append(strTab, 0)
	}

	var symTab bytes.Buffer
	require.NoError(t, binary.Write(&symTab, binary.LittleEndian, Sym32{}))
	for i, sym := range b.syms {
		require.NoError(t, binary.Write(&symTab, binary.LittleEndian, Sym32{
			Name:  nameOffsets[i],
			Val:   sym.value,
			Size:  sym.size,
			Info:  sym.info,
			Shndx: sym.shndx,
		}))
	}

	symTabIdx := uint32(len(b.secs) + 1)
	strTabIdx := symTabIdx + 1
	shNum := strTabIdx + 1

	hdrs := make([]Shdr32, shNum)
	var bodies bytes.Buffer
	offset := uint32(Ehdr32Size)

	place := func(hdr *Shdr32, data []byte, size uint32, hasBytes bool) {
		for offset%4 != 0 {
			bodies.WriteByte(0)
			offset++
		}
		hdr.Offset = offset
		hdr.Size = size
		if hasBytes {
			bodies.Write(data)
			offset += uint32(len(data))
		}
	}

	for i, sec := range b.secs {
		hdr := &hdrs[i+1]
		hdr.Type = sec.typ
		hdr.Flags = sec.flags
		hdr.AddrAlign = sec.addrAlign
		hdr.Info = sec.info
		if sec.typ == uint32(elf.SHT_REL) {
			hdr.Link = symTabIdx
			hdr.EntSize = uint32(Rel32Size)
		}
		size := sec.size
		if size == 0 {
			size = uint32(len(sec.data))
		}
		place(hdr, sec.data, size, sec.typ != uint32(elf.SHT_NOBITS))
	}

	symHdr := &hdrs[symTabIdx]
	symHdr.Type = uint32(elf.SHT_SYMTAB)
	symHdr.Link = strTabIdx
	symHdr.EntSize = uint32(Sym32Size)
	place(symHdr, symTab.Bytes(), uint32(symTab.Len()), true)

	strHdr := &hdrs[strTabIdx]
	strHdr.Type = uint32(elf.SHT_STRTAB)
	place(strHdr, strTab, uint32(len(strTab)), true)

	for offset%4 != 0 {
		bodies.WriteByte(0)
		offset++
	}
	shOff := offset

	ehdr := Ehdr32{
		Type:      b.typ,
		Machine:   b.machine,
		Version:   1,
		ShOff:     shOff,
		EhSize:    uint16(Ehdr32Size),
		PhNum:     b.phNum,
		ShEntSize: uint16(Shdr32Size),
		ShNum:     uint16(shNum),
	}
	copy(ehdr.Ident[:], elfMagic)
	ehdr.Ident[elf.EI_CLASS] = b.class
	ehdr.Ident[elf.EI_DATA] = b.data
	ehdr.Ident[elf.EI_VERSION] = 1

	var out bytes.Buffer
	require.NoError(t, binary.Write(&out, binary.LittleEndian, ehdr))
	out.Write(bodies.Bytes())
	require.NoError(t, binary.Write(&out, binary.LittleEndian, hdrs))
	return out.Bytes()
}

type arMember struct {
	name string
	data []byte
}

func buildArchive(members ...arMember) []byte {
	var out bytes.Buffer
	out.Write(archiveMagic)
	for _, m := range members {
		name := m.name + "/"
		if len(m.name) == 0 || m.name[len(m.name)-1] == '/' {
			name = m.name
		}
		fmt.Fprintf(&out, "%-16s%-12s%-6s%-6s%-8s%-10d`\n",
			name, "0", "0", "0", "644", len(m.data))
		out.Write(m.data)
		if len(m.data)%2 == 1 {
			out.WriteByte('\n')
		}
	}
	return out.Bytes()
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0666))
	return path
}
