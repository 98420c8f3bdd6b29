package prebuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/leegarchat/pixel-kernels/dtb"
)

// Pipeline holds everything one prebuild run needs. Create one per run.
type Pipeline struct {
	cfg    Config
	runner Runner
	log    zerolog.Logger
	dtbx   *dtb.Extractor
}

func NewPipeline(cfg Config, runner Runner, extractor *dtb.Extractor, logger zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, runner: runner, log: logger, dtbx: extractor}
}

func (p *Pipeline) mountImage(image string, mountPoint string) error {
	p.log.Info().Str("image", filepath.Base(image)).Msg("Mounting image")
	return p.runner.Run("", "sudo", "mount", "-o", "loop,ro", image, mountPoint)
}

func (p *Pipeline) unmountImage(mountPoint string) {
	// Unmount errors are ignored, the loop may already be gone
	_ = p.runner.Run("", "sudo", "umount", mountPoint)
}

// Copy every kernel module under root into outDir, skipping the 16k page
// size variants. Returns how many were copied.
func harvestModules(root string, outDir string) (int, error) {
	modules, err := findFiles(root, "*.ko")
	if err != nil {
		return 0, err
	}
	count := 0
	for _, mod := range modules {
		if strings.Contains(mod, "16k-mode") {
			continue
		}
		if err := copyFile(mod, filepath.Join(outDir, filepath.Base(mod))); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Copy the first file named name found under root to dst. Reports whether
// anything was found; a missing file is the caller's call to handle.
func copyFirst(root string, name string, dst string) (bool, error) {
	matches, err := findFiles(root, name)
	if err != nil || len(matches) == 0 {
		return false, err
	}
	return true, copyFile(matches[0], dst)
}

// Harvest modules plus the modules.load/modules.blocklist bookkeeping files
// from an unpacked (or mounted) partition tree. A missing blocklist becomes
// an empty file, matching what the boot flow expects to find.
func (p *Pipeline) harvestPartition(root string, prefix string) error {
	count, err := harvestModules(root, p.cfg.OutDir)
	if err != nil {
		return fmt.Errorf("copy modules: %w", err)
	}
	p.log.Info().Int("count", count).Msg("Copied kernel modules (.ko)")

	blocklist := filepath.Join(p.cfg.OutDir, prefix+".modules.blocklist")
	found, err := copyFirst(root, "modules.blocklist", blocklist)
	if err != nil {
		return fmt.Errorf("copy modules.blocklist: %w", err)
	}
	if found {
		p.log.Info().Msg("Found and copied modules.blocklist")
	} else {
		if err := touch(blocklist); err != nil {
			return fmt.Errorf("create empty blocklist: %w", err)
		}
		p.log.Warn().Msg("modules.blocklist not found, created an empty one")
	}

	load := filepath.Join(p.cfg.OutDir, prefix+".modules.load")
	found, err = copyFirst(root, "modules.load", load)
	if err != nil {
		return fmt.Errorf("copy modules.load: %w", err)
	}
	if found {
		p.log.Info().Msg("Found and copied modules.load")
	} else {
		p.log.Error().Msg("modules.load not found!")
	}
	return nil
}

// Step 1: system_dlkm.img
func (p *Pipeline) processSystemDlkm(tmpDir string) error {
	image := filepath.Join(p.cfg.InputDir, "system_dlkm.img")
	mnt := filepath.Join(tmpDir, "mnt_system")
	if err := os.MkdirAll(mnt, 0770); err != nil {
		return err
	}
	if err := p.mountImage(image, mnt); err != nil {
		return fmt.Errorf("mount system_dlkm.img: %w", err)
	}
	defer p.unmountImage(mnt)
	return p.harvestPartition(mnt, "system_dlkm")
}

// Step 2: vendor_dlkm.img, same as step 1 plus the init.insmod scripts
func (p *Pipeline) processVendorDlkm(tmpDir string) error {
	image := filepath.Join(p.cfg.InputDir, "vendor_dlkm.img")
	mnt := filepath.Join(tmpDir, "mnt_vendor")
	if err := os.MkdirAll(mnt, 0770); err != nil {
		return err
	}
	if err := p.mountImage(image, mnt); err != nil {
		return fmt.Errorf("mount vendor_dlkm.img: %w", err)
	}
	defer p.unmountImage(mnt)
	if err := p.harvestPartition(mnt, "vendor_dlkm"); err != nil {
		return err
	}
	// init.insmod* live in the root of etc/, never deeper
	insmods, err := filepath.Glob(filepath.Join(mnt, "etc", "init.insmod*"))
	if err != nil {
		return err
	}
	for _, f := range insmods {
		if err := copyFile(f, filepath.Join(p.cfg.OutDir, filepath.Base(f))); err != nil {
			return fmt.Errorf("copy %s: %w", filepath.Base(f), err)
		}
	}
	p.log.Info().Int("count", len(insmods)).Msg("Copied init.insmod files")
	return nil
}

// Step 3: vendor_kernel_boot.img. Unpacked with magiskboot, modules are
// harvested from the ramdisk cpio. Returns the work folder, which still
// holds the unpacked dtb blob for the extraction step.
func (p *Pipeline) processVendorKernelBoot(tmpDir string) (string, error) {
	workDir := filepath.Join(tmpDir, "vkb_extract")
	if err := os.MkdirAll(workDir, 0770); err != nil {
		return "", err
	}
	src := filepath.Join(p.cfg.InputDir, "vendor_kernel_boot.img")
	if err := copyFile(src, workDir); err != nil {
		return "", err
	}
	p.log.Info().Msg("Unpacking image with magiskboot")
	// magiskboot can exit nonzero on some formats yet still unpack the
	// ramdisk, so the cpio search below decides whether this step worked
	_ = p.runner.Run(workDir, p.cfg.Magiskboot, "unpack", "vendor_kernel_boot.img")

	cpios, err := findFiles(workDir, "*.cpio")
	if err != nil {
		return workDir, err
	}
	if len(cpios) == 0 {
		return workDir, fmt.Errorf("no cpio found inside vendor_kernel_boot.img")
	}
	p.log.Info().Str("cpio", filepath.Base(cpios[0])).Msg("Extracting cpio archive")
	if err := p.runner.Run(workDir, p.cfg.Magiskboot, "cpio", cpios[0], "extract"); err != nil {
		return workDir, fmt.Errorf("extract cpio: %w", err)
	}

	count, err := harvestModules(workDir, p.cfg.OutDir)
	if err != nil {
		return workDir, fmt.Errorf("copy modules: %w", err)
	}
	if count == 0 {
		p.log.Warn().Msg("No kernel modules (.ko) found in the ramdisk!")
	} else {
		p.log.Info().Int("count", count).Msg("Copied kernel modules (.ko)")
	}

	blocklist := filepath.Join(p.cfg.OutDir, "vendor_kernel_boot.modules.blocklist")
	found, err := copyFirst(workDir, "modules.blocklist", blocklist)
	if err != nil {
		return workDir, err
	}
	if !found {
		if err := touch(blocklist); err != nil {
			return workDir, err
		}
		p.log.Warn().Msg("modules.blocklist not found, created an empty one")
	}

	// The boot ramdisk load order doubles as the generic modules.load
	loads, err := findFiles(workDir, "modules.load")
	if err != nil {
		return workDir, err
	}
	if len(loads) > 0 {
		if err := copyFile(loads[0], filepath.Join(p.cfg.OutDir, "modules.load")); err != nil {
			return workDir, err
		}
		if err := copyFile(loads[0], filepath.Join(p.cfg.OutDir, "vendor_kernel_boot.modules.load")); err != nil {
			return workDir, err
		}
		p.log.Info().Msg("Copied modules.load and vendor_kernel_boot.modules.load")
	}
	return workDir, nil
}
