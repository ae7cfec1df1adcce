package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/example/go-voice-clone/internal/audio"
	"github.com/example/go-voice-clone/internal/tts"
)

const referenceField = "reference_audio"

// generateRequest is the JSON body of POST /generate.
type generateRequest struct {
	Text           string  `json:"text"`
	Voice          string  `json:"voice,omitempty"`
	Expressiveness float64 `json:"expressiveness,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	GuidanceWeight float64 `json:"guidance_weight,omitempty"`
	Seed           int64   `json:"seed,omitempty"`
}

// badRequestError carries a client-facing message and status.
type badRequestError struct {
	status int
	msg    string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func (h *handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	reqID := uuid.NewString()
	w.Header().Set("X-Request-ID", reqID)
	log := h.log.With(slog.String("request_id", reqID))

	if h.opts.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.maxUploadBytes)
	}

	req, cleanup, err := h.parseGenerate(r)
	defer cleanup()
	if err != nil {
		var br *badRequestError
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.As(err, &br):
			writeError(w, br.status, br.msg)
		default:
			writeError(w, statusFor(err), err.Error())
		}
		return
	}

	if h.opts.maxTextChars > 0 && utf8.RuneCountInString(req.Text) > h.opts.maxTextChars {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum of %d characters", h.opts.maxTextChars))
		return
	}

	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
			defer func() { <-h.sem }()
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
	}

	ctx := r.Context()
	if h.opts.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := h.gen.Generate(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		status := statusFor(err)
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(ctx, level, "generation failed",
			slog.Int("text_len", utf8.RuneCountInString(req.Text)),
			slog.Int64("seed", req.Seed),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
			slog.String("error", err.Error()),
		)
		writeError(w, status, err.Error())
		return
	}

	wav, err := audio.EncodeWAV(result.Samples, result.SampleRate)
	if err != nil {
		log.Error("wav encode failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "audio encoding failed")
		return
	}

	log.Info("generation complete",
		slog.Int("text_len", utf8.RuneCountInString(req.Text)),
		slog.Int64("seed", req.Seed),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
		slog.Int("samples", len(result.Samples)),
	)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("X-Sample-Rate", strconv.Itoa(result.SampleRate))
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

// parseGenerate reads a multipart form or a JSON body. The returned cleanup
// removes any uploaded reference and must always be called.
func (h *handler) parseGenerate(r *http.Request) (tts.GenerationRequest, func(), error) {
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		return h.parseForm(r)
	case "", "application/json":
		req, err := h.parseJSON(r)
		return req, noop, err
	default:
		return tts.GenerationRequest{}, noop, &badRequestError{
			status: http.StatusUnsupportedMediaType,
			msg:    fmt.Sprintf("unsupported content type %q", mediaType),
		}
	}
}

func (h *handler) parseJSON(r *http.Request) (tts.GenerationRequest, error) {
	var body generateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tts.GenerationRequest{}, err
		}
		return tts.GenerationRequest{}, badRequest("invalid JSON: %v", err)
	}

	req := tts.GenerationRequest{
		Text:           body.Text,
		Expressiveness: body.Expressiveness,
		Temperature:    body.Temperature,
		GuidanceWeight: body.GuidanceWeight,
		Seed:           body.Seed,
	}
	if body.Voice != "" {
		path, err := h.resolveVoice(body.Voice)
		if err != nil {
			return tts.GenerationRequest{}, err
		}
		req.ReferenceAudioPath = path
	}
	return req, nil
}

func (h *handler) parseForm(r *http.Request) (tts.GenerationRequest, func(), error) {
	cleanup := func() {}
	if err := r.ParseMultipartForm(h.opts.maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tts.GenerationRequest{}, cleanup, err
		}
		return tts.GenerationRequest{}, cleanup, badRequest("invalid form: %v", err)
	}
	if r.MultipartForm != nil {
		cleanup = func() { _ = r.MultipartForm.RemoveAll() }
	}

	req := tts.GenerationRequest{Text: r.FormValue("text")}

	var err error
	if req.Expressiveness, err = formFloat(r, "expressiveness"); err != nil {
		return req, cleanup, err
	}
	if req.Temperature, err = formFloat(r, "temperature"); err != nil {
		return req, cleanup, err
	}
	if req.GuidanceWeight, err = formFloat(r, "guidance_weight"); err != nil {
		return req, cleanup, err
	}
	if s := strings.TrimSpace(r.FormValue("seed")); s != "" {
		if req.Seed, err = strconv.ParseInt(s, 10, 64); err != nil {
			return req, cleanup, badRequest("seed must be an integer")
		}
	}

	file, _, err := r.FormFile(referenceField)
	switch {
	case err == nil:
		path, saveErr := saveUpload(file)
		_ = file.Close()
		if saveErr != nil {
			return req, cleanup, saveErr
		}
		prev := cleanup
		cleanup = func() {
			_ = os.Remove(path)
			prev()
		}
		req.ReferenceAudioPath = path
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		if id := r.FormValue("voice"); id != "" {
			path, resolveErr := h.resolveVoice(id)
			if resolveErr != nil {
				return req, cleanup, resolveErr
			}
			req.ReferenceAudioPath = path
		}
	default:
		return req, cleanup, badRequest("read %s: %v", referenceField, err)
	}

	return req, cleanup, nil
}

func (h *handler) resolveVoice(id string) (string, error) {
	if h.voices == nil {
		return "", fmt.Errorf("%w: %q", tts.ErrUnknownVoice, id)
	}
	return h.voices.Resolve(id)
}

func formFloat(r *http.Request, name string) (float64, error) {
	s := strings.TrimSpace(r.FormValue(name))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, badRequest("%s must be a number", name)
	}
	return v, nil
}

// saveUpload copies an uploaded clip to a temp file for the model to read.
func saveUpload(src io.Reader) (string, error) {
	f, err := os.CreateTemp("", "voiceclone-ref-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp reference: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("save reference upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("save reference upload: %w", err)
	}
	return f.Name(), nil
}
