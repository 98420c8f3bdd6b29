// Package prebuild prepares a prebuilt-kernel folder out of a set of factory
// partition images: kernel modules harvested from the dlkm images and the
// vendor kernel boot ramdisk, individual device tree blobs extracted from the
// concatenated dtb, and the kernel itself in raw, gzip and lz4-legacy form.
// Optionally a custom kernel replaces the stock one and boot.img is repacked
// around it.
//
// External tools (mount, magiskboot) are reached through the Runner
// interface; the dtb decompiler through dtb.Decoder. Each numbered step
// mirrors the others in shape: work in a temp folder, publish results into
// the output folder, warn and move on when a step fails.
package prebuild

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/leegarchat/pixel-kernels/dtb"
)

// Run the full preparation sequence. Config validation problems and an
// unusable output folder are fatal; individual step failures are logged and
// the remaining steps still run, so one bad partition image doesn't cost the
// whole output.
func Run(cfg Config, runner Runner, logger zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutDir, 0770); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}

	extractor := dtb.NewExtractor(&dtb.DtcDecoder{Path: cfg.DtcPath})
	extractor.Logger = logger
	p := NewPipeline(cfg, runner, extractor, logger)

	tmpDir, err := os.MkdirTemp("", "pixel-kernels-*")
	if err != nil {
		return fmt.Errorf("create temp folder: %w", err)
	}
	defer os.RemoveAll(tmpDir)
	logger.Info().Str("tmp", tmpDir).Msg("Working in temp folder")

	// dtbo.img needs no processing, it's published verbatim under both names
	dtbo := filepath.Join(cfg.InputDir, "dtbo.img")
	if err := copyFile(dtbo, filepath.Join(cfg.OutDir, "dtbo.img")); err != nil {
		return fmt.Errorf("copy dtbo.img: %w", err)
	}
	if err := copyFile(dtbo, filepath.Join(cfg.OutDir, "dtbo")); err != nil {
		return fmt.Errorf("copy dtbo: %w", err)
	}
	logger.Info().Msg("Copied dtbo.img (as dtbo and dtbo.img)")

	logger.Info().Msg("[Step 1] system_dlkm.img")
	if err := p.processSystemDlkm(tmpDir); err != nil {
		logger.Warn().Err(err).Msg("system_dlkm step failed")
	}

	logger.Info().Msg("[Step 2] vendor_dlkm.img")
	if err := p.processVendorDlkm(tmpDir); err != nil {
		logger.Warn().Err(err).Msg("vendor_dlkm step failed")
	}

	logger.Info().Msg("[Step 3] vendor_kernel_boot.img")
	vkbWorkDir, err := p.processVendorKernelBoot(tmpDir)
	if err != nil {
		logger.Warn().Err(err).Msg("vendor_kernel_boot step failed")
	}

	logger.Info().Msg("[Step 3.1] device tree blobs")
	var dtbFiles []string
	if vkbWorkDir != "" {
		dtbFiles, err = p.processDtb(vkbWorkDir)
		if err != nil {
			logger.Warn().Err(err).Msg("dtb step failed")
		}
	}

	logger.Info().Msg("[Step 4] boot.img")
	if err := p.processBoot(tmpDir); err != nil {
		logger.Warn().Err(err).Msg("boot step failed")
	}

	if cfg.KernelImg != "" {
		logger.Info().Msg("[Step 5] custom kernel integration")
		if !fileExists(cfg.KernelImg) {
			logger.Error().Str("path", cfg.KernelImg).Msg("Custom kernel file not found!")
		} else if err := p.integrateCustomKernel(tmpDir, dtbFiles); err != nil {
			logger.Warn().Err(err).Msg("custom kernel step failed")
		}
	}

	logger.Info().Str("out", cfg.OutDir).Msg("Done! Prebuilt files are ready")
	return nil
}
