package linker

import (
	"debug/elf"

	"objlink/pkg/utils"
)

type MachineType uint8

const (
	MachineTypeNone MachineType = iota
	MachineTypeMIPS
	MachineTypeARM
)

func (m MachineType) String() string {
	switch m {
	case MachineTypeNone:
		return "none"
	case MachineTypeMIPS:
		return "mips"
	case MachineTypeARM:
		return "arm"
	}
	return "unknown"
}

func GetMachineTypeFromName(name string) MachineType {
	switch name {
	case "mips":
		return MachineTypeMIPS
	case "arm":
		return MachineTypeARM
	}
	return MachineTypeNone
}

func GetMachineTypeFromContent(content []byte) MachineType {
	if GetFileTypeFromContent(content) != FileTypeObject {
		return MachineTypeNone
	}
	if elf.Class(content[4]) != elf.ELFCLASS32 {
		return MachineTypeNone
	}

	var machine uint16
	utils.Read[uint16](content[18:], &machine)
	switch elf.Machine(machine) {
	case elf.EM_MIPS:
		return MachineTypeMIPS
	case elf.EM_ARM:
		return MachineTypeARM
	}
	return MachineTypeNone
}
