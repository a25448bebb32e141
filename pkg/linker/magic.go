package linker

import (
	"bytes"
)

var elfMagic = []byte("\x7FELF")
var archiveMagic = []byte("!<arch>\n")

func CheckElfMagic(content []byte) bool {
	return bytes.HasPrefix(content, elfMagic)
}

func CheckArchiveMagic(content []byte) bool {
	return bytes.HasPrefix(content, archiveMagic)
}
