package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"objlink/pkg/linker"
	"objlink/pkg/utils"
)

var version string

type args struct {
	input   string
	arch    string
	base    uint32
	output  string
	symbols string
}

func usage() {
	fmt.Println("objlink " + version)
	fmt.Println("usage: objlink [-arch mips|arm] [-base address] [-o image.bin] [-sym listing.sym] library")
	os.Exit(1)
}

func parseArgs(argv []string) args {
	a := args{output: "out.bin"}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if !strings.HasPrefix(arg, "-") {
			if a.input != "" {
				usage()
			}
			a.input = arg
			continue
		}

		readValue := func() string {
			i++
			if i >= len(argv) {
				usage()
			}
			return argv[i]
		}

		switch strings.TrimPrefix(arg, "-") {
		case "arch":
			a.arch = readValue()
		case "base":
			base, err := strconv.ParseUint(readValue(), 0, 32)
			if err != nil {
				usage()
			}
			a.base = uint32(base)
		case "o":
			a.output = readValue()
		case "sym":
			a.symbols = readValue()
		default:
			usage()
		}
	}

	if a.input == "" {
		usage()
	}
	return a
}

// relocation passes are bounded; COMMON allocation settles after one
// extra pass, anything longer means the inputs are degenerate
const maxPasses = 10

func main() {
	a := parseArgs(os.Args[1:])

	machine := linker.GetMachineTypeFromName(a.arch)
	if machine == linker.MachineTypeNone {
		// no override given, sniff the first object in the library
		entries, err := linker.LoadArchive(a.input)
		utils.MustNo(err)
		for _, entry := range entries {
			machine = linker.GetMachineTypeFromContent(entry.Data.Bytes())
			if machine != linker.MachineTypeNone {
				break
			}
		}
	}

	diag := linker.NewDiagnostics()
	symtab := linker.NewSymbolTable()

	relocator, err := linker.NewElfRelocator(a.input, linker.GetArchRelocator(machine), symtab, diag)
	if err != nil {
		os.Exit(1)
	}

	if err := relocator.ExportSymbols(); err != nil {
		utils.Fatal(err)
	}

	var size uint32
	for pass := 0; pass < maxPasses; pass++ {
		size, err = relocator.Relocate(a.base)
		diag.Flush()
		if err != nil {
			utils.Fatal(err)
		}
		if !relocator.DataChanged() {
			break
		}
	}

	utils.MustNo(os.WriteFile(a.output, relocator.OutputData().Bytes(), 0666))
	fmt.Printf("%s: %d bytes at %08X\n", a.output, size, a.base)

	if a.symbols != "" {
		symData := linker.NewSymbolData()
		relocator.WriteSymbols(symData)
		writeSymbolListing(a.symbols, symData)
	}
}

func writeSymbolListing(path string, symData *linker.SymbolData) {
	var sb strings.Builder
	for _, label := range symData.Labels {
		fmt.Fprintf(&sb, "%08X %s\n", label.Address, label.Name)
	}
	for _, span := range symData.DataSpans {
		fmt.Fprintf(&sb, "%08X .byt:%04X\n", span.Address, span.Size)
	}
	for _, fn := range symData.Functions {
		fmt.Fprintf(&sb, "%08X .fun:%04X\n", fn.Start, fn.End-fn.Start)
	}
	utils.MustNo(os.WriteFile(path, []byte(sb.String()), 0666))
}
