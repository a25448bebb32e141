package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
)

func Fatal(v any) {
	fmt.Printf("fatal: %v\n", v)
	debug.PrintStack()
	os.Exit(1)
}

func MustNo(err error) {
	if err != nil {
		Fatal(err)
	}
}

func Assert(res bool) {
	if !res {
		Fatal(res)
	}
}

func Read[T any](content []byte, val *T) {
	reader := bytes.NewReader(content)
	err := binary.Read(reader, binary.LittleEndian, val) // wire format is little endian
	MustNo(err)
}

func ReadSlice[T any](content []byte, size int) []T {
	Assert(len(content)%size == 0)
	ret := make([]T, 0)
	for len(content) > 0 {
		var ele T
		Read[T](content, &ele)
		ret = append(ret, ele)
		content = content[size:]
	}
	return ret
}

func AlignTo(val, align uint32) uint32 {
	if align <= 1 {
		return val
	}
	return (val + align - 1) / align * align
}

// ToLowerASCII folds A-Z to a-z byte-wise. Non-ASCII bytes pass
// through unchanged; symbol names are treated as opaque byte strings.
func ToLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// FileNameFromPath returns the path component after the last slash or
// backslash separator.
func FileNameFromPath(path string) string {
	n := strings.LastIndexAny(path, "/\\")
	if n == -1 {
		return path
	}
	return path[n+1:]
}
