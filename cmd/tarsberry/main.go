// Command tarsberry is a Tars packet inspector.
//
// Usage:
//
//	tarsberry probe [options] <file>
//	tarsberry dump [options] <file>
//	tarsberry unframe [options] <file>
//	tarsberry version
//
// Probe Command:
//
//	Check whether a file holds a complete, well-formed Tars struct body
//	and print the decoded tag map. Exits non-zero when the probe fails.
//
// Dump Command:
//
//	Decode a raw Tars field sequence and print one line per tag.
//
//	Options:
//	  -bytes string   SimpleList handling: raw, string, auto (default "auto")
//	  -gbk            Transcode non-UTF-8 string payloads from GBK
//
// Unframe Command:
//
//	Split a length-prefixed stream into packets and dump each one.
//
//	Options:
//	  -len int        Length header width: 1, 2, or 4 (default 4)
//	  -exclusive      Header does not count itself
//	  -le             Little-endian length header
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/blockberries/tarsberry/pkg/tars"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "probe":
		err = runProbe(os.Args[2:])
	case "dump":
		err = runDump(os.Args[2:])
	case "unframe":
		err = runUnframe(os.Args[2:])
	case "version":
		fmt.Println("tarsberry", tars.VersionInfo())
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "tarsberry:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage:
  tarsberry probe <file>      probe a struct body and print its tag map
  tarsberry dump <file>       dump a raw field sequence
  tarsberry unframe <file>    split a length-prefixed stream
  tarsberry version           print version information`)
}

func runProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	d := tars.ProbeStruct(data)
	if d == nil {
		return fmt.Errorf("input is not a complete struct body")
	}
	printDict(d, "")
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	bytesMode := fs.String("bytes", "auto", "SimpleList handling: raw, string, auto")
	gbk := fs.Bool("gbk", false, "transcode non-UTF-8 strings from GBK")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	opts, err := parseOptions(*bytesMode, *gbk)
	if err != nil {
		return err
	}
	d, err := tars.RawUnmarshalWithOptions(data, opts)
	if err != nil {
		return err
	}
	printDict(d, "")
	return nil
}

func runUnframe(args []string) error {
	fs := flag.NewFlagSet("unframe", flag.ExitOnError)
	lenType := fs.Int("len", 4, "length header width: 1, 2, or 4")
	exclusive := fs.Bool("exclusive", false, "header does not count itself")
	le := fs.Bool("le", false, "little-endian length header")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}

	dec, err := tars.NewFrameDecoder(tars.FrameConfig{
		LengthType:         *lenType,
		InclusiveLength:    !*exclusive,
		LittleEndianLength: *le,
		MaxBufferSize:      len(data) + 16,
	})
	if err != nil {
		return err
	}
	if err := dec.Feed(data); err != nil {
		return err
	}

	n := 0
	for {
		payload, err := dec.Next()
		if err != nil {
			return err
		}
		if payload == nil {
			break
		}
		fmt.Printf("packet %d (%d bytes):\n", n, len(payload))
		d, err := tars.RawUnmarshal(payload)
		if err != nil {
			fmt.Printf("  <undecodable: %v>\n", err)
		} else {
			printDict(d, "  ")
		}
		n++
	}
	if dec.Buffered() > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d trailing bytes do not form a packet\n", dec.Buffered())
	}
	return nil
}

func parseOptions(bytesMode string, gbk bool) (tars.Options, error) {
	opts := tars.Options{FallbackGBK: gbk}
	switch bytesMode {
	case "raw":
		opts.Bytes = tars.BytesRaw
	case "string":
		opts.Bytes = tars.BytesString
	case "auto":
		opts.Bytes = tars.BytesAuto
	default:
		return opts, fmt.Errorf("unknown bytes mode %q", bytesMode)
	}
	return opts, nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printDict(d tars.Dict, indent string) {
	tags := make([]int, 0, len(d))
	for t := range d {
		tags = append(tags, int(t))
	}
	sort.Ints(tags)
	for _, t := range tags {
		v := d[uint8(t)]
		if nested, ok := v.(tars.Dict); ok {
			fmt.Printf("%s%d: struct {\n", indent, t)
			printDict(nested, indent+"  ")
			fmt.Printf("%s}\n", indent)
			continue
		}
		fmt.Printf("%s%d: %v\n", indent, t, v)
	}
}
