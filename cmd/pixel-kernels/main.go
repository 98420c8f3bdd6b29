package main

import (
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/leegarchat/pixel-kernels/dtb"
	"github.com/leegarchat/pixel-kernels/prebuild"
)

const (
	AppVersion = "0.3.0"
)

var logger = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.RFC3339,
}).With().Timestamp().Logger()

// Quick way to fail on error, since most commands are "doing" something on
// behalf of something else.
func fatalIfErr(subject string, doing string, err error) {
	if err != nil {
		logger.Fatal().Err(err).Msgf("%s - couldn't %s", subject, doing)
	}
}

// **********************************
// *         DTB COMMANDS           *
// **********************************

// Dtb extract command
type DtbExtractCmd struct {
	Input  string `arg:"" type:"existingfile" help:"Binary holding one or more concatenated device tree blobs"`
	Outdir string `type:"path" short:"o" required:"" help:"Folder to save the extracted blobs into"`
	Dtc    string `default:"dtc" help:"Device tree compiler executable used to name the blobs"`
}

func (c *DtbExtractCmd) Run() error {
	extractor := dtb.NewExtractor(&dtb.DtcDecoder{Path: c.Dtc})
	extractor.Logger = logger
	results, err := extractor.ExtractFile(c.Input, c.Outdir)
	fatalIfErr(c.Input, "extract device tree blobs", err)
	named := 0
	filenames := make([]string, len(results))
	for i, r := range results {
		filenames[i] = r.Filename
		if r.Decoded {
			named++
		}
	}
	result := make(map[string]interface{})
	result["Infile"] = c.Input
	result["Outdir"] = c.Outdir
	result["Blobs"] = len(results)
	result["Named"] = named
	result["Fallback"] = len(results) - named
	result["Filenames"] = filenames
	PrintJson(result)
	return nil
}

// Dtb scan command (read-only diagnostic)
type DtbScanCmd struct {
	Input string `arg:"" type:"existingfile" help:"Binary to scan for device tree blobs"`
}

func (c *DtbScanCmd) Run() error {
	data, err := os.ReadFile(c.Input)
	fatalIfErr(c.Input, "read input file", err)
	offsets := dtb.ScanMagic(data)
	logger.Info().Int("count", len(offsets)).Msgf("Scanned %s", c.Input)
	regions := dtb.SplitRegions(offsets, len(data))
	entries := make([]map[string]interface{}, len(regions))
	for i, r := range regions {
		entries[i] = map[string]interface{}{
			"Index":  i,
			"Offset": r.Start,
			"Length": r.Len(),
		}
	}
	result := make(map[string]interface{})
	result["Infile"] = c.Input
	result["FileLength"] = len(data)
	result["Blobs"] = entries
	PrintJson(result)
	return nil
}

// **********************************
// *       PREBUILD COMMAND         *
// **********************************

type PrebuildCmd struct {
	Input      string `required:"" type:"existingdir" help:"Folder with the factory img files"`
	Out        string `required:"" type:"path" help:"Output folder for the prebuilt files"`
	Img        string `type:"existingfile" help:"Custom kernel to integrate (zip or image)"`
	Config     string `type:"existingfile" help:"Optional TOML config with tool paths"`
	Dtc        string `help:"Device tree compiler executable (overrides config)"`
	Magiskboot string `help:"Magiskboot executable (overrides config)"`
	Debug      bool   `help:"Show output of external commands"`
}

func (c *PrebuildCmd) Run() error {
	cfg := prebuild.DefaultConfig()
	if c.Config != "" {
		var err error
		cfg, err = prebuild.LoadConfig(c.Config)
		fatalIfErr(c.Config, "load config", err)
	}
	// Flags beat the config file
	cfg.InputDir = c.Input
	cfg.OutDir = c.Out
	if c.Img != "" {
		cfg.KernelImg = c.Img
	}
	if c.Dtc != "" {
		cfg.DtcPath = c.Dtc
	}
	if c.Magiskboot != "" {
		cfg.Magiskboot = c.Magiskboot
	}
	if c.Debug {
		cfg.Debug = true
	}
	runner := &prebuild.ExecRunner{Logger: logger, Debug: cfg.Debug}
	err := prebuild.Run(cfg, runner, logger)
	fatalIfErr(c.Input, "prepare prebuilt files", err)
	return nil
}

// **********************************
// *    ALL TOGETHER COMMANDS       *
// **********************************

var cli struct {
	Dtb struct {
		Extract DtbExtractCmd `cmd:"" help:"Extract and name every device tree blob concatenated in a binary"`
		Scan    DtbScanCmd    `cmd:"" help:"List offsets and sizes of device tree blobs in a binary"`
	} `cmd:"" help:"Commands which work on concatenated device tree blobs"`
	Prebuild PrebuildCmd      `cmd:"" help:"Prepare a prebuilt kernel folder from factory partition images"`
	Version  kong.VersionFlag `help:"Show version information"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("pixel-kernels"),
		kong.ShortUsageOnError(),
		kong.Description("Tools for extracting device trees and preparing prebuilt Pixel kernels"),
		kong.Vars{
			"version": AppVersion,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
