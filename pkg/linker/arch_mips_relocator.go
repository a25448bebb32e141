package linker

import (
	"debug/elf"

	"github.com/pkg/errors"
)

// MipsArchRelocator patches MIPS opcodes. HI16/LO16 halves are patched
// independently; the HI16 half rounds the low half's sign bit in via
// the +0x8000 carry.
type MipsArchRelocator struct{}

func (r *MipsArchRelocator) SetSymbolAddress(rd *RelocationData, address uint32, symbolType uint8) {
	rd.SymbolAddress = address
	rd.TargetSymbolType = symbolType
	rd.TargetSymbolInfo = 0
}

func (r *MipsArchRelocator) RelocateOpcode(relType uint32, rd *RelocationData) error {
	op := rd.Opcode

	switch elf.R_MIPS(relType) {
	case elf.R_MIPS_32:
		op += rd.RelocationBase
	case elf.R_MIPS_26:
		if rd.RelocationBase%4 != 0 {
			return errors.Errorf("misaligned jump target %08X", rd.RelocationBase)
		}
		if (rd.OpcodeOffset+4)&0xF0000000 != rd.RelocationBase&0xF0000000 {
			return errors.Errorf("jump target %08X out of segment", rd.RelocationBase)
		}
		target := (op & 0x03FFFFFF) + rd.RelocationBase>>2
		op = op&^0x03FFFFFF | target&0x03FFFFFF
	case elf.R_MIPS_HI16:
		full := (op&0xFFFF)<<16 + rd.RelocationBase
		op = op&^0xFFFF | (full+0x8000)>>16&0xFFFF
	case elf.R_MIPS_LO16:
		addend := int32(int16(op & 0xFFFF))
		full := uint32(int32(rd.RelocationBase) + addend)
		op = op&^0xFFFF | full&0xFFFF
	default:
		return errors.Errorf("unknown MIPS relocation type %d", relType)
	}

	rd.Opcode = op
	return nil
}
