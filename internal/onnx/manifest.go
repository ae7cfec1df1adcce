package onnx

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestFile is the bundle descriptor expected in the model directory.
const ManifestFile = "voiceclone.json"

const (
	defaultSampleRate          = 24000
	defaultReferenceSampleRate = 16000
	defaultNoiseLength         = 256
)

// Manifest describes an exported voice-cloning bundle.
type Manifest struct {
	Graph               string    `json:"graph"`
	Tokenizer           string    `json:"tokenizer,omitempty"`
	DefaultReference    string    `json:"default_reference,omitempty"`
	SampleRate          int       `json:"sample_rate"`
	ReferenceSampleRate int       `json:"reference_sample_rate"`
	NoiseLength         int       `json:"noise_length"`
	Nodes               NodeNames `json:"nodes"`

	dir string
}

// NodeNames maps logical graph inputs and outputs to the names used in the
// exported graph.
type NodeNames struct {
	InputIDs     string `json:"input_ids"`
	Reference    string `json:"reference"`
	Exaggeration string `json:"exaggeration"`
	CFGWeight    string `json:"cfg_weight"`
	Temperature  string `json:"temperature"`
	Noise        string `json:"noise"`
	Waveform     string `json:"waveform"`
}

func defaultNodeNames() NodeNames {
	return NodeNames{
		InputIDs:     "input_ids",
		Reference:    "reference",
		Exaggeration: "exaggeration",
		CFGWeight:    "cfg_weight",
		Temperature:  "temperature",
		Noise:        "noise",
		Waveform:     "waveform",
	}
}

// LoadManifest reads dir/voiceclone.json, fills defaults and checks that the
// referenced files exist.
func LoadManifest(dir string) (Manifest, error) {
	if dir == "" {
		return Manifest{}, errors.New("model dir is required")
	}

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return Manifest{}, fmt.Errorf("read bundle manifest: %w", err)
	}

	m, err := parseManifest(data, dir)
	if err != nil {
		return Manifest{}, err
	}

	for _, f := range m.Files() {
		if _, err := os.Stat(m.Path(f)); err != nil {
			return Manifest{}, fmt.Errorf("bundle file %q: %w", f, err)
		}
	}

	return m, nil
}

func parseManifest(data []byte, dir string) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode bundle manifest: %w", err)
	}

	m.dir = dir
	m.applyDefaults()

	if m.Graph == "" {
		return Manifest{}, errors.New("bundle manifest has empty graph")
	}
	if m.SampleRate < 0 || m.ReferenceSampleRate < 0 || m.NoiseLength < 0 {
		return Manifest{}, errors.New("bundle manifest has negative sizes")
	}

	return m, nil
}

func (m *Manifest) applyDefaults() {
	if m.SampleRate == 0 {
		m.SampleRate = defaultSampleRate
	}
	if m.ReferenceSampleRate == 0 {
		m.ReferenceSampleRate = defaultReferenceSampleRate
	}
	if m.NoiseLength == 0 {
		m.NoiseLength = defaultNoiseLength
	}

	d := defaultNodeNames()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.Nodes.InputIDs, d.InputIDs)
	fill(&m.Nodes.Reference, d.Reference)
	fill(&m.Nodes.Exaggeration, d.Exaggeration)
	fill(&m.Nodes.CFGWeight, d.CFGWeight)
	fill(&m.Nodes.Temperature, d.Temperature)
	fill(&m.Nodes.Noise, d.Noise)
	fill(&m.Nodes.Waveform, d.Waveform)
}

// Files lists the bundle files the manifest references, graph first.
func (m Manifest) Files() []string {
	files := []string{m.Graph}
	if m.Tokenizer != "" {
		files = append(files, m.Tokenizer)
	}
	if m.DefaultReference != "" {
		files = append(files, m.DefaultReference)
	}
	return files
}

// Path resolves a manifest-relative file name.
func (m Manifest) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.dir, filepath.FromSlash(name))
}
