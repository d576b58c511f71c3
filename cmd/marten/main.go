// Marten CLI - inspect, verify, and store compiled Marten programs
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/chazu/marten/manifest"
	"github.com/chazu/marten/pkg/bytecode"
	"github.com/chazu/marten/pkg/dist"
	"github.com/chazu/marten/pkg/store"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("marten.cli")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	disasm := flag.String("disasm", "", "Disassemble a compiled program image")
	verify := flag.String("verify", "", "Verify a compiled program image against -hash")
	hashHex := flag.String("hash", "", "Expected content hash (hex) for -verify / program to fetch for -get")
	put := flag.String("put", "", "Store a compiled program image in the project store")
	get := flag.String("get", "", "Fetch a program by -hash from the store into the given file")
	list := flag.Bool("list", false, "List programs in the project store")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: marten [options]\n\n")
		fmt.Fprintf(os.Stderr, "Inspects and stores compiled Marten program images (.mtp).\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  marten -disasm main.mtp            # Print bytecode listing\n")
		fmt.Fprintf(os.Stderr, "  marten -verify main.mtp -hash HEX  # Check content hash\n")
		fmt.Fprintf(os.Stderr, "  marten -put main.mtp               # Store under its content hash\n")
		fmt.Fprintf(os.Stderr, "  marten -get out.mtp -hash HEX      # Fetch by content hash\n")
		fmt.Fprintf(os.Stderr, "  marten -list                       # List stored programs\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(1, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	switch {
	case *disasm != "":
		run(cmdDisasm(*disasm))
	case *verify != "":
		run(cmdVerify(*verify, *hashHex))
	case *put != "":
		run(cmdPut(*put))
	case *get != "":
		run(cmdGet(*get, *hashHex))
	case *list:
		run(cmdList())
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func run(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "marten: %v\n", err)
		os.Exit(1)
	}
}

func loadImage(path string) (*dist.ProgramImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return dist.UnmarshalProgram(data)
}

func cmdDisasm(path string) error {
	img, err := loadImage(path)
	if err != nil {
		return err
	}
	for i, p := range img.Protos {
		code := make([]bytecode.Instruction, len(p.Instructions))
		for pc, w := range p.Instructions {
			code[pc] = bytecode.Instruction(w)
		}
		lines := make([]int, len(p.Lines))
		for pc, l := range p.Lines {
			lines[pc] = int(l)
		}

		name := fmt.Sprintf("%s #%d", p.Module, i)
		if i == img.Entry {
			name += " (entry)"
		}
		fmt.Print(bytecode.Disassemble(name, code, lines))

		if len(p.Numbers) > 0 || len(p.Strings) > 0 {
			fmt.Println("; Constants:")
			for j, n := range p.Numbers {
				fmt.Printf(";   number[%d] = %g\n", j, n)
			}
			for j, s := range p.Strings {
				fmt.Printf(";   string[%d] = %q\n", j, s)
			}
		}
		fmt.Println()
	}
	return nil
}

func parseHash(hashHex string) ([32]byte, error) {
	var h [32]byte
	raw, err := hex.DecodeString(hashHex)
	if err != nil || len(raw) != 32 {
		return h, fmt.Errorf("invalid content hash %q", hashHex)
	}
	copy(h[:], raw)
	return h, nil
}

func cmdVerify(path, hashHex string) error {
	img, err := loadImage(path)
	if err != nil {
		return err
	}
	declared, err := parseHash(hashHex)
	if err != nil {
		return err
	}
	if err := dist.VerifyProgram(img, declared); err != nil {
		return err
	}
	fmt.Printf("%s: ok\n", path)
	return nil
}

func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(cwd, ".marten", "programs.db")
	if m != nil {
		path = m.StorePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	log.Debugf("opening program store at %s", path)
	return store.Open(path)
}

func cmdPut(path string) error {
	img, err := loadImage(path)
	if err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	hash, err := s.Put(img)
	if err != nil {
		return err
	}
	fmt.Printf("%x\n", hash)
	return nil
}

func cmdGet(outPath, hashHex string) error {
	hash, err := parseHash(hashHex)
	if err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	img, err := s.Get(hash)
	if err != nil {
		return err
	}
	data, err := dist.MarshalProgram(img)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, data, 0644)
}

func cmdList() error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %s\n", e.Hash, e.Module)
	}
	return nil
}
