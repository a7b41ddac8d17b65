// Package config loads croaker's TOML configuration and credential files.
//
// The schema mirrors _examples/original_source/src/config/mod.rs; loading
// and default-filling follow the same shape as sumerc-zee's flag defaults,
// adapted to a file-based config the way the original does.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// OutputMode is the runtime text-delivery strategy.
type OutputMode string

const (
	OutputDirect    OutputMode = "direct"
	OutputClipboard OutputMode = "clipboard"
	OutputBoth      OutputMode = "both"
)

// Cycle returns the next mode in the fixed rotation both -> clipboard ->
// direct -> both, matching spec.md's ToggleOutputMode round-trip law.
func (m OutputMode) Cycle() OutputMode {
	switch m {
	case OutputClipboard:
		return OutputDirect
	case OutputDirect:
		return OutputBoth
	default:
		return OutputClipboard
	}
}

type General struct {
	Language  string   `toml:"language"`
	Languages []string `toml:"languages"`
}

type Hotkeys struct {
	PushToTalkKey      string `toml:"push_to_talk_key"`
	PushToTalkEnabled  bool   `toml:"push_to_talk_enabled"`
	ToggleShortcut     string `toml:"toggle_shortcut"`
	ToggleEnabled      bool   `toml:"toggle_enabled"`
	CancelShortcut     string `toml:"cancel_shortcut"`
	OutputModeShortcut string `toml:"output_mode_shortcut"`
	LanguageShortcut   string `toml:"language_shortcut"`
}

type Audio struct {
	Device     string `toml:"device"`
	SampleRate uint32 `toml:"sample_rate"`
	Format     string `toml:"format"`
	// Command is the external PCM capture tool and its arguments. "{path}"
	// is substituted with the destination file. Not present in the
	// original's config schema; croaker needs it because AudioRecorder
	// spawns an arbitrary subprocess rather than linking an audio library.
	Command []string `toml:"command"`
}

type Groq struct {
	KeyFile            string  `toml:"key_file"`
	WhisperModel       string  `toml:"whisper_model"`
	CleanupEnabled     bool    `toml:"cleanup_enabled"`
	CleanupModel       string  `toml:"cleanup_model"`
	CleanupPromptFile  string  `toml:"cleanup_prompt_file"`
	CleanupTemperature float64 `toml:"cleanup_temperature"`
	RequestTimeoutSec  uint32  `toml:"request_timeout_sec"`
}

type Output struct {
	KeystrokeDelayMs uint64     `toml:"keystroke_delay_ms"`
	ClipboardRestore bool       `toml:"clipboard_restore"`
	OutputMode       OutputMode `toml:"output_mode"`
}

type Overlay struct {
	Enabled bool   `toml:"enabled"`
	Backend string `toml:"backend"`
}

type Config struct {
	General General `toml:"general"`
	Hotkeys Hotkeys `toml:"hotkeys"`
	Audio   Audio   `toml:"audio"`
	Groq    Groq    `toml:"groq"`
	Output  Output  `toml:"output"`
	Overlay Overlay `toml:"overlay"`
}

func Default() Config {
	return Config{
		General: General{
			Language:  "en",
			Languages: []string{"en", "tr", "es", "fr", "de"},
		},
		Hotkeys: Hotkeys{
			PushToTalkKey:      "RightAlt",
			PushToTalkEnabled:  true,
			ToggleShortcut:     "Super+Shift+R",
			ToggleEnabled:      true,
			CancelShortcut:     "Escape",
			OutputModeShortcut: "Shift+RightAlt+O",
			LanguageShortcut:   "Shift+RightAlt+L",
		},
		Audio: Audio{
			Device:     "default",
			SampleRate: 16000,
			Format:     "s16",
			Command:    []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "{path}"},
		},
		Groq: Groq{
			KeyFile:            "~/.config/croaker/groq.key",
			WhisperModel:       "whisper-large-v3-turbo",
			CleanupEnabled:     true,
			CleanupModel:       "openai/gpt-oss-120b",
			CleanupPromptFile:  "~/.config/croaker/prompts/default.txt",
			CleanupTemperature: 0.0,
			RequestTimeoutSec:  60,
		},
		Output: Output{
			KeystrokeDelayMs: 5,
			ClipboardRestore: true,
			OutputMode:       OutputBoth,
		},
		Overlay: Overlay{
			Enabled: true,
			Backend: "tray",
		},
	}
}

const defaultTOML = `# croaker configuration file. All options shown with their defaults.

[general]
language = "en"
languages = ["en", "tr", "es", "fr", "de"]

[hotkeys]
push_to_talk_key = "RightAlt"
push_to_talk_enabled = true
toggle_shortcut = "Super+Shift+R"
toggle_enabled = true
cancel_shortcut = "Escape"
output_mode_shortcut = "Shift+RightAlt+O"
language_shortcut = "Shift+RightAlt+L"

[audio]
device = "default"
sample_rate = 16000
format = "s16"
command = ["arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "{path}"]

[groq]
key_file = "~/.config/croaker/groq.key"
whisper_model = "whisper-large-v3-turbo"
cleanup_enabled = true
cleanup_model = "openai/gpt-oss-120b"
cleanup_prompt_file = "~/.config/croaker/prompts/default.txt"
cleanup_temperature = 0.0
request_timeout_sec = 60

[output]
keystroke_delay_ms = 5
clipboard_restore = true
output_mode = "both"

[overlay]
enabled = true
backend = "tray"
`

// ConfigDir returns ~/.config/croaker (or $XDG_CONFIG_HOME/croaker).
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "croaker"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "croaker"), nil
}

// CacheDir returns ~/.cache/croaker (or $XDG_CACHE_HOME/croaker) — the
// home for the daemon's socket and per-session temp audio files.
func CacheDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "croaker"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "croaker"), nil
}

// Path returns the config file's absolute path.
func Path() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file, creating a default one on first run, and
// expands "~/" prefixes in file paths.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Config{}, fmt.Errorf("resolving config path: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Config{}, fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultTOML), 0o644); err != nil {
			return Config{}, fmt.Errorf("writing default config: %w", err)
		}
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Groq.KeyFile, err = expandPath(cfg.Groq.KeyFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Groq.CleanupPromptFile, err = expandPath(cfg.Groq.CleanupPromptFile)
	if err != nil {
		return Config{}, err
	}

	if len(cfg.General.Languages) == 0 {
		return Config{}, fmt.Errorf("config: general.languages must not be empty")
	}
	if !contains(cfg.General.Languages, cfg.General.Language) {
		cfg.General.Languages = append([]string{cfg.General.Language}, cfg.General.Languages...)
	}

	return cfg, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func expandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %q: %w", p, err)
	}
	return filepath.Join(home, p[2:]), nil
}

// LoadAPIKey reads the bearer token from Groq.KeyFile.
func LoadAPIKey(keyFile string) (string, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return "", fmt.Errorf("reading API key file %s: %w", keyFile, err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("API key file %s is empty", keyFile)
	}
	return key, nil
}

// LoadCleanupPrompt reads the cleanup system prompt, falling back to a
// built-in default if the configured file does not exist.
func LoadCleanupPrompt(promptFile string) (string, error) {
	data, err := os.ReadFile(promptFile)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultCleanupPrompt, nil
		}
		return "", fmt.Errorf("reading cleanup prompt %s: %w", promptFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}

const defaultCleanupPrompt = `You clean up raw speech-to-text transcripts. Fix punctuation, capitalization, ` +
	`and obvious mis-hearings. Do not add content, do not answer questions, do not summarize. ` +
	`Return only the corrected text.`
