package prebuild

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
)

// Kernel file names accepted inside an AnyKernel-style zip
var kernelCandidates = []string{"Image", "kernel", "zImage", "Image.gz", "Image.lz4"}

// Step 3.1: pull the individual device tree blobs out of the dtb file that
// magiskboot unpacked from vendor_kernel_boot.img. The concatenated blob is
// also copied through verbatim as dtb and dtb.img. Returns the *.dtb files
// now present in the output folder, so a custom kernel step can replace them.
func (p *Pipeline) processDtb(vkbWorkDir string) ([]string, error) {
	src := filepath.Join(vkbWorkDir, "dtb")
	if !fileExists(src) {
		p.log.Warn().Msg("No dtb file found in vendor_kernel_boot")
		return nil, nil
	}
	return p.extractDtbs(src)
}

func (p *Pipeline) extractDtbs(src string) ([]string, error) {
	p.log.Info().Str("input", src).Msg("Extracting device tree blobs")
	if _, err := p.dtbx.ExtractFile(src, p.cfg.OutDir); err != nil {
		return nil, err
	}
	if err := copyFile(src, filepath.Join(p.cfg.OutDir, "dtb.img")); err != nil {
		return nil, err
	}
	if err := copyFile(src, filepath.Join(p.cfg.OutDir, "dtb")); err != nil {
		return nil, err
	}
	created, err := filepath.Glob(filepath.Join(p.cfg.OutDir, "*.dtb"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(created))
	for _, f := range created {
		names = append(names, filepath.Base(f))
	}
	p.log.Info().Int("count", len(names)).Msg("Device tree blobs in output folder")
	return names, nil
}

// Write the Image.gz and Image.lz4 distributable forms of a raw kernel.
// The lz4 file uses the legacy frame format, the only one the kernel
// decompressor understands.
func compressKernel(kernelPath string, outDir string) error {
	if err := compressTo(kernelPath, filepath.Join(outDir, "Image.gz"), func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriter(w), nil
	}); err != nil {
		return fmt.Errorf("compress Image.gz: %w", err)
	}
	if err := compressTo(kernelPath, filepath.Join(outDir, "Image.lz4"), func(w io.Writer) (io.WriteCloser, error) {
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.LegacyOption(true)); err != nil {
			return nil, err
		}
		return zw, nil
	}); err != nil {
		return fmt.Errorf("compress Image.lz4: %w", err)
	}
	return nil
}

func compressTo(src string, dst string, wrap func(io.Writer) (io.WriteCloser, error)) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	zw, err := wrap(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(zw, in); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

// Step 4: boot.img. Unpack it, publish the raw kernel as Image plus its
// compressed forms, and copy the stock boot.img through.
func (p *Pipeline) processBoot(tmpDir string) error {
	workDir := filepath.Join(tmpDir, "boot_extract")
	if err := os.MkdirAll(workDir, 0770); err != nil {
		return err
	}
	src := filepath.Join(p.cfg.InputDir, "boot.img")
	if err := copyFile(src, workDir); err != nil {
		return err
	}
	p.log.Info().Msg("Unpacking boot.img")
	if err := p.runner.Run(workDir, p.cfg.Magiskboot, "unpack", "boot.img"); err != nil {
		return fmt.Errorf("unpack boot.img: %w", err)
	}
	kernel := filepath.Join(workDir, "kernel")
	if fileExists(kernel) {
		p.log.Info().Msg("Kernel found")
		if err := copyFile(kernel, filepath.Join(p.cfg.OutDir, "Image")); err != nil {
			return err
		}
		p.log.Info().Msg("Compressing kernel to Image.lz4 and Image.gz")
		if err := compressKernel(kernel, p.cfg.OutDir); err != nil {
			return err
		}
	} else {
		p.log.Error().Msg("No kernel file inside boot.img!")
	}
	return copyFile(src, filepath.Join(p.cfg.OutDir, "boot.img"))
}

// Pull the first zip entry whose base name matches any of names out into
// destDir, keeping the base name. Returns the extracted path.
func extractZipFirst(archive *zip.ReadCloser, names []string, destDir string) (string, error) {
	for _, f := range archive.File {
		base := filepath.Base(f.Name)
		for _, want := range names {
			if base != want {
				continue
			}
			in, err := f.Open()
			if err != nil {
				return "", err
			}
			defer in.Close()
			dest := filepath.Join(destDir, base)
			out, err := os.Create(dest)
			if err != nil {
				return "", err
			}
			defer out.Close()
			if _, err := io.Copy(out, in); err != nil {
				return "", err
			}
			return dest, out.Close()
		}
	}
	return "", nil
}

// Place the custom kernel into dir as a raw "kernel" file. Compressed inputs
// go through magiskboot decompress; when that fails the file is assumed to
// already be raw and copied as-is.
func (p *Pipeline) stageKernel(src string, dir string) error {
	dest := filepath.Join(dir, "kernel")
	if err := p.runner.Run(dir, p.cfg.Magiskboot, "decompress", src, dest); err != nil {
		p.log.Warn().Msg("Couldn't decompress kernel (probably raw), copying as-is")
		return copyFile(src, dest)
	}
	return nil
}

// Step 5: integrate a custom kernel (raw image, compressed image, or an
// AnyKernel-style zip) and repack boot.img around it. When the zip also
// carries a replacement dtb, the previously extracted *.dtb files are
// replaced with a fresh extraction from it.
func (p *Pipeline) integrateCustomKernel(tmpDir string, oldDtbs []string) error {
	repackDir := filepath.Join(tmpDir, "repacker")
	if err := os.MkdirAll(repackDir, 0770); err != nil {
		return err
	}
	if err := copyFile(filepath.Join(p.cfg.InputDir, "boot.img"), repackDir); err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(p.cfg.KernelImg), ".zip") {
		p.log.Info().Str("zip", p.cfg.KernelImg).Msg("Processing kernel zip")
		archive, err := zip.OpenReader(p.cfg.KernelImg)
		if err != nil {
			return fmt.Errorf("open kernel zip: %w", err)
		}
		defer archive.Close()
		stageDir := filepath.Join(tmpDir, "zip_extract")
		if err := os.MkdirAll(stageDir, 0770); err != nil {
			return err
		}
		found, err := extractZipFirst(archive, kernelCandidates, stageDir)
		if err != nil {
			return err
		}
		if found == "" {
			return fmt.Errorf("no kernel found inside %s", p.cfg.KernelImg)
		}
		p.log.Info().Str("kernel", filepath.Base(found)).Msg("Found kernel in zip")
		if err := p.stageKernel(found, repackDir); err != nil {
			return err
		}
		// A dtb in the zip replaces everything the stock dtb produced
		newDtb, err := extractZipFirst(archive, []string{"dtb", "dtb.img"}, stageDir)
		if err != nil {
			return err
		}
		if newDtb != "" {
			p.log.Info().Int("count", len(oldDtbs)).Msg("Replacing extracted device tree blobs")
			for _, name := range oldDtbs {
				if err := os.Remove(filepath.Join(p.cfg.OutDir, name)); err != nil && !os.IsNotExist(err) {
					p.log.Warn().Err(err).Str("name", name).Msg("Couldn't remove old dtb")
				}
			}
			if _, err := p.extractDtbs(newDtb); err != nil {
				return err
			}
		}
	} else {
		p.log.Info().Str("image", p.cfg.KernelImg).Msg("Processing kernel image")
		if err := p.stageKernel(p.cfg.KernelImg, repackDir); err != nil {
			return err
		}
	}

	kernel := filepath.Join(repackDir, "kernel")
	if !fileExists(kernel) {
		return fmt.Errorf("custom kernel was not staged")
	}
	p.log.Info().Msg("Repacking boot.img with the new kernel")
	if err := p.runner.Run(repackDir, p.cfg.Magiskboot, "repack", "boot.img"); err != nil {
		return fmt.Errorf("repack boot.img: %w", err)
	}
	newBoot := filepath.Join(repackDir, "new-boot.img")
	if !fileExists(newBoot) {
		return fmt.Errorf("magiskboot did not produce new-boot.img")
	}
	if err := copyFile(newBoot, filepath.Join(p.cfg.OutDir, "boot.img")); err != nil {
		return err
	}
	if err := copyFile(kernel, filepath.Join(p.cfg.OutDir, "Image")); err != nil {
		return err
	}
	if err := compressKernel(kernel, p.cfg.OutDir); err != nil {
		return err
	}
	p.log.Info().Msg("Output boot.img and Image files refreshed")
	return nil
}
