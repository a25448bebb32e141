package linker

import (
	"github.com/pkg/errors"

	"objlink/pkg/utils"
)

// ArEntry is one member of an ar library: the member name and its bytes.
type ArEntry struct {
	Name string
	Data *ByteBuffer
}

// LoadArchive reads an ar library from path and returns its ELF members
// in order. A bare ELF object yields a single entry named after the path
// leaf. Content with neither magic yields an empty list; deciding what
// that means is up to the caller.
func LoadArchive(path string) ([]ArEntry, error) {
	input, err := NewByteBufferFromFile(path)
	if err != nil {
		return nil, err
	}
	return readArchive(input, path)
}

func readArchive(input *ByteBuffer, path string) ([]ArEntry, error) {
	content := input.Bytes()
	result := []ArEntry{}

	if !CheckArchiveMagic(content) {
		if !CheckElfMagic(content) {
			return result, nil
		}
		result = append(result, ArEntry{
			Name: utils.FileNameFromPath(path),
			Data: input,
		})
		return result, nil
	}

	pos := uint32(len(archiveMagic))
	for pos+uint32(ArHdrSize) <= input.Size() {
		var hdr ArHdr
		utils.Read[ArHdr](content[pos:], &hdr)
		pos += uint32(ArHdrSize)

		size, err := hdr.GetSize()
		if err != nil {
			return nil, errors.Wrapf(err, "bad member size in %s", path)
		}

		// only ELF members are interesting; this also drops the ar
		// symbol index ("/") and the extended name table ("//")
		if pos+4 <= input.Size() && CheckElfMagic(content[pos:]) {
			result = append(result, ArEntry{
				Name: hdr.ReadName(),
				Data: input.Mid(pos, uint32(size)),
			})
		}

		pos += uint32(size)
		if pos%2 == 1 {
			pos++
		}
	}

	return result, nil
}
