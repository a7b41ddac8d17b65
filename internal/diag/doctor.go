// Package diag implements the "doctor" diagnostic subcommand, grounded
// on doctor/doctor.go's staged checks with pass/fail printouts, adapted
// from zee's audio+clipboard checks to croaker's capture-command,
// uinput, clipboard-tool, and Groq-credential checks.
package diag

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	execute "github.com/alexellis/go-execute/v2"
	"github.com/kumralcem/croaker/internal/config"
)

// Run executes every diagnostic check and returns a process exit code:
// 0 if every check passed, 1 otherwise.
func Run(cfg config.Config) int {
	fmt.Println("croaker doctor - system diagnostics")
	fmt.Println("====================================")

	allPass := true
	checks := []func(config.Config) bool{
		checkAudioCapture,
		checkUinput,
		checkClipboardTool,
		checkGroqCredential,
		checkSocketPath,
	}
	for _, check := range checks {
		if !check(cfg) {
			allPass = false
		}
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkAudioCapture(cfg config.Config) bool {
	fmt.Println()
	fmt.Println("[1/5] Audio capture command")

	if len(cfg.Audio.Command) == 0 {
		fmt.Println("  FAIL: audio.command is empty in config")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	task := execute.ExecTask{Command: cfg.Audio.Command[0], Args: []string{"--version"}, StreamStdio: false}
	if _, err := task.Execute(ctx); err != nil {
		fmt.Printf("  FAIL: %s not runnable: %v\n", cfg.Audio.Command[0], err)
		fmt.Printf("  Fix with: install %s (e.g. apt install alsa-utils)\n", cfg.Audio.Command[0])
		return false
	}

	fmt.Printf("  PASS: %s is available\n", cfg.Audio.Command[0])
	return true
}

func checkUinput(_ config.Config) bool {
	fmt.Println()
	fmt.Println("[2/5] Keystroke output (uinput device)")

	for _, path := range []string{"/dev/uinput", "/dev/input/uinput"} {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("  PASS: %s present\n", path)
			return true
		}
	}
	fmt.Println("  FAIL: no uinput device found")
	fmt.Println("  Fix with: sudo modprobe uinput && sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
	return false
}

func checkClipboardTool(_ config.Config) bool {
	fmt.Println()
	fmt.Println("[3/5] Clipboard tool")

	for _, bin := range []string{"wl-copy", "xclip", "xsel"} {
		if p := lookPath(bin); p != "" {
			fmt.Printf("  PASS: found %s\n", p)
			return true
		}
	}
	fmt.Println("  FAIL: no clipboard tool found (wl-copy, xclip, xsel)")
	fmt.Println("  Fix with: install wl-clipboard (Wayland) or xclip (X11)")
	return false
}

func checkGroqCredential(cfg config.Config) bool {
	fmt.Println()
	fmt.Println("[4/5] Groq API key")

	key, err := config.LoadAPIKey(cfg.Groq.KeyFile)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		fmt.Printf("  Fix with: put your Groq API key in %s (mode 600)\n", cfg.Groq.KeyFile)
		return false
	}
	fmt.Printf("  PASS: key file readable (%d chars)\n", len(key))
	return true
}

func checkSocketPath(_ config.Config) bool {
	fmt.Println()
	fmt.Println("[5/5] Daemon socket path")

	dir, err := config.CacheDir()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Printf("  FAIL: cannot create %s: %v\n", dir, err)
		return false
	}
	fmt.Printf("  PASS: %s/croaker.sock is a writable location\n", dir)
	return true
}

func lookPath(bin string) string {
	p, err := exec.LookPath(bin)
	if err != nil {
		return ""
	}
	return p
}
