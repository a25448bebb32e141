package linker

import (
	"debug/elf"

	"github.com/pkg/errors"
)

// thumb execution state, kept in the label info so external references
// know how to reach the target.
const armInfoThumb uint64 = 1

// ArmArchRelocator patches ARM opcodes. FUNC symbol values carry the
// thumb state in bit 0; it is stripped here and remembered in the
// target symbol info.
type ArmArchRelocator struct{}

func (r *ArmArchRelocator) SetSymbolAddress(rd *RelocationData, address uint32, symbolType uint8) {
	rd.TargetSymbolType = symbolType
	rd.TargetSymbolInfo = 0
	if elf.SymType(symbolType) == elf.STT_FUNC && address&1 != 0 {
		rd.SymbolAddress = address &^ 1
		rd.TargetSymbolInfo = armInfoThumb
		return
	}
	rd.SymbolAddress = address
}

func (r *ArmArchRelocator) RelocateOpcode(relType uint32, rd *RelocationData) error {
	op := rd.Opcode
	thumb := rd.TargetSymbolInfo&armInfoThumb != 0

	switch elf.R_ARM(relType) {
	case elf.R_ARM_ABS32, elf.R_ARM_TARGET1:
		op += rd.RelocationBase
	case elf.R_ARM_CALL, elf.R_ARM_PC24, elf.R_ARM_JUMP24, elf.R_ARM_PLT32:
		if thumb {
			return errors.Errorf("cannot branch to thumb target %08X from ARM code", rd.RelocationBase)
		}
		addend := signExtend(op&0x00FFFFFF, 24) << 2
		off := int64(rd.RelocationBase) + int64(addend) - int64(rd.OpcodeOffset) - 8
		if off%4 != 0 {
			return errors.Errorf("misaligned branch target %08X", rd.RelocationBase)
		}
		if off < -0x2000000 || off >= 0x2000000 {
			return errors.Errorf("branch target %08X out of range", rd.RelocationBase)
		}
		op = op&^0x00FFFFFF | uint32(off>>2)&0x00FFFFFF
	case elf.R_ARM_THM_PC22: // R_ARM_THM_CALL
		if !thumb {
			return errors.Errorf("cannot branch to ARM target %08X from thumb code", rd.RelocationBase)
		}
		addend := signExtend((op&0x7FF)<<11|op>>16&0x7FF, 22) << 1
		off := int64(rd.RelocationBase) + int64(addend) - int64(rd.OpcodeOffset) - 4
		if off%2 != 0 {
			return errors.Errorf("misaligned branch target %08X", rd.RelocationBase)
		}
		if off < -0x400000 || off >= 0x400000 {
			return errors.Errorf("branch target %08X out of range", rd.RelocationBase)
		}
		op = op&0xF800F800 | uint32(off>>12)&0x7FF | (uint32(off>>1)&0x7FF)<<16
	case elf.R_ARM_V4BX:
		// nothing to patch
	default:
		return errors.Errorf("unknown ARM relocation type %d", relType)
	}

	rd.Opcode = op
	return nil
}

func signExtend(val uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(val<<shift) >> shift
}
