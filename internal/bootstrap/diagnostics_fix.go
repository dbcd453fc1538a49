package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"upload-ai/internal/config"
	"upload-ai/internal/diagnostics"
	"upload-ai/internal/domain"
)

const installCommandTimeout = 45 * time.Minute

type installOption struct {
	manager  string
	commands [][]string
}

// installer runs package-manager commands. Fields are swapped in tests.
type installer struct {
	goos      string
	available func(name string) bool
	run       func(name string, args ...string) error
}

func newInstaller() installer {
	return installer{
		goos:      goruntime.GOOS,
		available: commandAvailable,
		run:       runCommand,
	}
}

// InstallOrFixDiagnostic applies an OS-specific remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	settingsChanged := false
	var fixErr error

	switch id {
	case diagnostics.IDFFmpeg, diagnostics.IDEncoder:
		fixErr = a.installer.installFFmpeg()
	case diagnostics.IDWorkspace:
		settings, settingsChanged, fixErr = fixWorkspaceDir(settings)
	case diagnostics.IDSubmission:
		fixErr = fmt.Errorf("set %s in %s and restart the app", config.EnvAPIKey, config.DefaultEnvPath())
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		a.log().Warn("diagnostic fix failed", "item", id, "error", fixErr)
		return report, fixErr
	}
	a.log().Info("diagnostic fixed", "item", id)
	return report, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// ensureLocalBinOnPATH prepends the per-user tool directory to PATH so a
// user-installed ffmpeg is found by the engine.
func ensureLocalBinOnPATH(appDir string) error {
	binDir := filepath.Join(appDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}

// ffmpegInstallOptions lists package managers to try, most preferred first.
func ffmpegInstallOptions(goos string) []installOption {
	switch goos {
	case "windows":
		return []installOption{
			{manager: "winget", commands: [][]string{
				{"winget", "install", "--id", "Gyan.FFmpeg", "--exact", "--accept-source-agreements", "--accept-package-agreements"},
			}},
			{manager: "choco", commands: [][]string{{"choco", "install", "ffmpeg", "-y"}}},
			{manager: "scoop", commands: [][]string{{"scoop", "install", "ffmpeg"}}},
		}
	case "darwin":
		return []installOption{
			{manager: "brew", commands: [][]string{{"brew", "install", "ffmpeg"}}},
		}
	default:
		return []installOption{
			{manager: "apt-get", commands: [][]string{
				{"apt-get", "update"},
				{"apt-get", "install", "-y", "ffmpeg"},
			}},
			{manager: "dnf", commands: [][]string{{"dnf", "install", "-y", "ffmpeg"}}},
			{manager: "pacman", commands: [][]string{{"pacman", "-Sy", "--noconfirm", "ffmpeg"}}},
			{manager: "zypper", commands: [][]string{{"zypper", "install", "-y", "ffmpeg"}}},
			{manager: "brew", commands: [][]string{{"brew", "install", "ffmpeg"}}},
		}
	}
}

func (in installer) installFFmpeg() error {
	if err := in.runFirstSuccessful(ffmpegInstallOptions(in.goos)); err != nil {
		return fmt.Errorf("install ffmpeg: %w", err)
	}
	if !in.available("ffmpeg") {
		return fmt.Errorf("ffmpeg installed but not found on PATH")
	}
	return nil
}

func (in installer) runFirstSuccessful(options []installOption) error {
	if len(options) == 0 {
		return fmt.Errorf("no install commands configured for OS %s", in.goos)
	}

	failures := make([]string, 0, len(options))
	for _, option := range options {
		if !in.available(option.manager) {
			continue
		}
		err := in.runAll(option)
		if err == nil {
			return nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", option.manager, err))
	}

	if len(failures) == 0 {
		return fmt.Errorf("no supported package manager found for %s", in.goos)
	}
	return errors.New(strings.Join(failures, " | "))
}

func (in installer) runAll(option installOption) error {
	for _, command := range option.commands {
		if err := in.runElevated(command); err != nil {
			return err
		}
	}
	return nil
}

// runElevated retries system package managers through pkexec or sudo.
func (in installer) runElevated(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}

	candidates := [][]string{command}
	if in.goos == "linux" && requiresElevation(command[0]) {
		if in.available("pkexec") {
			candidates = append(candidates, append([]string{"pkexec"}, command...))
		}
		if in.available("sudo") {
			candidates = append(candidates, append([]string{"sudo", "-n"}, command...))
		}
	}

	attempts := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		err := in.run(candidate[0], candidate[1:]...)
		if err == nil {
			return nil
		}
		attempts = append(attempts, err.Error())
	}
	return errors.New(strings.Join(attempts, " | "))
}

func runCommand(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), installCommandTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err == nil {
		return nil
	}

	command := strings.Join(append([]string{name}, args...), " ")
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", command, installCommandTimeout)
	}

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > 500 {
		trimmed = trimmed[:500] + "..."
	}
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", command, err)
	}
	return fmt.Errorf("%s failed: %w (%s)", command, err, trimmed)
}

func requiresElevation(manager string) bool {
	switch manager {
	case "apt-get", "dnf", "pacman", "zypper":
		return true
	default:
		return false
	}
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// fixWorkspaceDir restores the default workspace when unset and creates it.
func fixWorkspaceDir(settings domain.Settings) (domain.Settings, bool, error) {
	dir := strings.TrimSpace(settings.WorkspaceDir)
	changed := false
	if dir == "" {
		dir = config.DefaultSettings().WorkspaceDir
		settings.WorkspaceDir = dir
		changed = true
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return settings, changed, fmt.Errorf("create workspace directory %s: %w", dir, err)
	}
	return settings, changed, nil
}
