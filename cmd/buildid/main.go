package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/peterbourgon/ff/v3"

	"github.com/vietanhduong/buildid"
	"github.com/vietanhduong/buildid/pkg/elf"
	"github.com/vietanhduong/buildid/pkg/pe"
)

func main() {
	var (
		locator        = flag.String("locator", string(buildid.DefaultStrategy()), "Build ID locator: elf, macho, pe, ldflags or none")
		memory         = flag.String("memory", string(buildid.MemoryDirect), "How the elf locator reads loaded objects: direct or procmem")
		goFallback     = flag.Bool("go-fallback", false, "Use the Go build ID when there is no GNU build ID")
		firstEntryOnly = flag.Bool("first-entry-only", false, "Only look at the first PE debug directory entry")
		format         = flag.String("format", "hex", "Output format: hex, raw or guid")
		file           = flag.String("file", "", "Read the build ID of this ELF file instead of the running binary")
	)
	if err := ff.Parse(flag.CommandLine, os.Args[1:], ff.WithEnvVarPrefix("BUILDID")); err != nil {
		glog.Errorf("Failed to parse flags: %v", err)
		exit(2)
	}

	var id []byte
	if *file != "" {
		bid, err := elf.ReadBuildID(*file, *goFallback)
		if err != nil {
			glog.Errorf("Failed to read build ID of %s: %v", *file, err)
			exit(1)
		}
		if bid != nil {
			id = bid.ID
		}
	} else {
		l, err := buildid.NewLocator(buildid.Config{
			Strategy:       buildid.Strategy(*locator),
			Memory:         buildid.Memory(*memory),
			GoFallback:     *goFallback,
			FirstEntryOnly: *firstEntryOnly,
		})
		if err != nil {
			glog.Errorf("Failed to create locator: %v", err)
			exit(2)
		}
		id = buildid.Lookup(l)
	}

	if id == nil {
		glog.Infof("No build ID found")
		exit(1)
	}
	out, err := formatID(id, *format)
	if err != nil {
		glog.Errorf("Failed to format build ID: %v", err)
		exit(2)
	}
	if _, err := os.Stdout.Write(out); err != nil {
		glog.Errorf("Failed to write build ID: %v", err)
		exit(1)
	}
	glog.Flush()
}

func exit(code int) {
	glog.Flush()
	os.Exit(code)
}

func formatID(id []byte, format string) ([]byte, error) {
	switch format {
	case "hex":
		return []byte(fmt.Sprintf("%x\n", id)), nil
	case "raw":
		return id, nil
	case "guid":
		if len(id) != pe.GUIDSize {
			return nil, fmt.Errorf("build ID of %d bytes is not a GUID", len(id))
		}
		return []byte((&pe.CodeView{GUID: id}).GUIDString() + "\n"), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
