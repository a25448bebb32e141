package linker

import (
	"debug/elf"

	"objlink/pkg/utils"
)

type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeEmpty
	FileTypeObject
	FileTypeArchive
)

func GetFileTypeFromContent(content []byte) FileType {
	if len(content) == 0 {
		return FileTypeEmpty
	}
	if CheckElfMagic(content) && len(content) >= 18 {
		var elfType uint16
		utils.Read[uint16](content[16:], &elfType)
		if elf.Type(elfType) == elf.ET_REL {
			return FileTypeObject
		}
	}
	if CheckArchiveMagic(content) {
		return FileTypeArchive
	}
	return FileTypeUnknown
}
