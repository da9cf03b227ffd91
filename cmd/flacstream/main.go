// flacstream is a tool which decodes FLAC files; it converts them to WAV
// files, lists their metadata blocks and frames, and verifies their integrity.
package main

import (
	"log"
	"os"

	"github.com/alecthomas/kong"
	"github.com/coreos/pkg/capnslog"
)

var plog = capnslog.NewPackageLogger("github.com/mewkiz/flacstream", "cmd/flacstream")

var CLI struct {
	Verbose bool `short:"v" help:"Print debug messages of the decoder."`
	Quiet   bool `short:"q" help:"Only print errors."`

	Wav struct {
		Force bool     `short:"f" help:"Force overwrite of existing WAV files."`
		Paths []string `arg:"" name:"file" help:"FLAC files to convert." type:"existingfile"`
	} `cmd:"" help:"Convert FLAC files to WAV files."`

	List struct {
		BlockNum []int   `name:"block-number" help:"Block numbers to display; all blocks if empty." sep:","`
		Frames   bool     `help:"List audio frames."`
		Paths    []string `arg:"" name:"file" help:"FLAC files to list." type:"existingfile"`
	} `cmd:"" help:"List metadata blocks of FLAC files."`

	Verify struct {
		Seek  uint64   `help:"Seek to the given sample before decoding." default:"0"`
		Paths []string `arg:"" name:"file" help:"FLAC files to verify." type:"existingfile"`
	} `cmd:"" help:"Decode FLAC files and verify their MD5 signature."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("flacstream"),
		kong.Description("Decode FLAC streams."),
		kong.UsageOnError(),
	)
	capnslog.SetFormatter(capnslog.NewPrettyFormatter(os.Stderr, CLI.Verbose))
	switch {
	case CLI.Verbose:
		capnslog.SetGlobalLogLevel(capnslog.DEBUG)
	case CLI.Quiet:
		capnslog.SetGlobalLogLevel(capnslog.ERROR)
	default:
		capnslog.SetGlobalLogLevel(capnslog.NOTICE)
	}

	switch ctx.Command() {
	case "wav <file>":
		for _, path := range CLI.Wav.Paths {
			if err := flac2wav(path, CLI.Wav.Force); err != nil {
				log.Fatalf("%+v", err)
			}
		}
	case "list <file>":
		for _, path := range CLI.List.Paths {
			if err := list(path, CLI.List.BlockNum, CLI.List.Frames); err != nil {
				log.Fatalf("%+v", err)
			}
		}
	case "verify <file>":
		ok := true
		for _, path := range CLI.Verify.Paths {
			valid, err := verify(path, CLI.Verify.Seek)
			if err != nil {
				log.Fatalf("%+v", err)
			}
			ok = ok && valid
		}
		if !ok {
			os.Exit(1)
		}
	default:
		ctx.Fatalf("unknown command %q", ctx.Command())
	}
}
