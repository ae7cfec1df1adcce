package tts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnknownVoice is returned when a voice id is not in the library.
var ErrUnknownVoice = errors.New("unknown voice")

// Voice is a stored reference clip that requests can name instead of
// uploading audio.
type Voice struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	License     string `json:"license,omitempty"`
	Description string `json:"description,omitempty"`
}

type voiceManifest struct {
	Voices []Voice `json:"voices"`
}

// VoiceLibrary is the read-only set of voices from a manifest file. Relative
// voice paths resolve against the manifest directory.
type VoiceLibrary struct {
	baseDir string
	voices  []Voice
	byID    map[string]Voice
}

// LoadVoiceLibrary reads manifestPath. A missing manifest yields an empty
// library.
func LoadVoiceLibrary(manifestPath string) (*VoiceLibrary, error) {
	if manifestPath == "" {
		return nil, errors.New("manifest path is required")
	}

	data, err := os.ReadFile(manifestPath)
	if errors.Is(err, os.ErrNotExist) {
		return &VoiceLibrary{byID: map[string]Voice{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read voice manifest: %w", err)
	}

	var manifest voiceManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode voice manifest: %w", err)
	}

	lib := &VoiceLibrary{
		baseDir: filepath.Dir(manifestPath),
		voices:  make([]Voice, 0, len(manifest.Voices)),
		byID:    make(map[string]Voice, len(manifest.Voices)),
	}

	for _, v := range manifest.Voices {
		if v.ID == "" {
			return nil, errors.New("voice manifest contains empty id")
		}
		if v.Path == "" {
			return nil, fmt.Errorf("voice %q has empty path", v.ID)
		}
		if !strings.EqualFold(filepath.Ext(v.Path), ".wav") {
			return nil, fmt.Errorf("voice %q: reference must be a .wav file", v.ID)
		}
		if _, exists := lib.byID[v.ID]; exists {
			return nil, fmt.Errorf("duplicate voice id %q", v.ID)
		}

		lib.byID[v.ID] = v
		lib.voices = append(lib.voices, v)
	}

	return lib, nil
}

func (l *VoiceLibrary) Voices() []Voice {
	return append([]Voice(nil), l.voices...)
}

// Resolve returns the clip path for id.
func (l *VoiceLibrary) Resolve(id string) (string, error) {
	v, ok := l.byID[id]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownVoice, id)
	}

	resolved := v.Path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(l.baseDir, resolved)
	}

	resolved = filepath.Clean(resolved)

	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("voice file for %q: %w", id, err)
	}

	return resolved, nil
}
