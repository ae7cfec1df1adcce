package server

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/example/go-voice-clone/internal/tts"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type slider struct {
	Name    string
	Label   string
	Min     float64
	Max     float64
	Step    float64
	Default float64
}

type indexData struct {
	Title   string
	Sliders []slider
	Voices  []tts.Voice
}

func formSliders() []slider {
	return []slider{
		{
			Name: "expressiveness", Label: "Expressiveness",
			Min: tts.MinExpressiveness, Max: tts.MaxExpressiveness, Step: 0.05,
			Default: tts.DefaultExpressiveness,
		},
		{
			Name: "guidance_weight", Label: "Guidance weight",
			Min: tts.MinGuidanceWeight, Max: tts.MaxGuidanceWeight, Step: 0.05,
			Default: tts.DefaultGuidanceWeight,
		},
		{
			Name: "temperature", Label: "Temperature",
			Min: tts.MinTemperature, Max: tts.MaxTemperature, Step: 0.05,
			Default: tts.DefaultTemperature,
		},
	}
}

func (h *handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data := indexData{
		Title:   "Voice Cloning Studio",
		Sliders: formSliders(),
	}
	if h.voices != nil {
		data.Voices = h.voices.Voices()
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		h.log.Error("render index", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
