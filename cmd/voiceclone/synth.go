package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/example/go-voice-clone/internal/audio"
	"github.com/example/go-voice-clone/internal/config"
	"github.com/example/go-voice-clone/internal/tts"
)

// playAudio is replaced in tests.
var playAudio = audio.Play

type synthFlags struct {
	text           string
	ref            string
	voice          string
	out            string
	expressiveness float64
	temperature    float64
	guidanceWeight float64
	seed           int64
	play           bool
}

func newSynthCmd() *cobra.Command {
	var f synthFlags

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize text to WAV in the voice of a reference clip",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			text, err := readSynthText(f.text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ref, err := resolveReference(cfg, f.ref, f.voice)
			if err != nil {
				return err
			}

			handle, svc, err := buildService(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = handle.Close() }()

			result, err := svc.Generate(cmd.Context(), tts.GenerationRequest{
				Text:               text,
				ReferenceAudioPath: ref,
				Expressiveness:     f.expressiveness,
				Temperature:        f.temperature,
				GuidanceWeight:     f.guidanceWeight,
				Seed:               f.seed,
			})
			if err != nil {
				return err
			}

			wav, err := audio.EncodeWAV(result.Samples, result.SampleRate)
			if err != nil {
				return err
			}

			if err := writeSynthOutput(f.out, wav, cmd.OutOrStdout()); err != nil {
				return err
			}
			if f.out != "-" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s, %.2fs @ %d Hz)\n",
					f.out, humanize.Bytes(uint64(len(wav))),
					audio.Duration(len(result.Samples), result.SampleRate), result.SampleRate)
			}

			if f.play {
				return playAudio(cmd.Context(), result.Samples, result.SampleRate)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.text, "text", "", "Text to synthesize (if empty, read from stdin)")
	cmd.Flags().StringVar(&f.ref, "ref", "", "Reference WAV whose voice is cloned")
	cmd.Flags().StringVar(&f.voice, "voice", "", "Voice id from the voice library (alternative to --ref)")
	cmd.Flags().StringVar(&f.out, "out", "out.wav", "Output WAV path ('-' for stdout)")
	cmd.Flags().Float64Var(&f.expressiveness, "expressiveness", tts.DefaultExpressiveness, "Expressiveness (0.3-1.2)")
	cmd.Flags().Float64Var(&f.temperature, "temperature", tts.DefaultTemperature, "Sampling temperature (0.05-1.5)")
	cmd.Flags().Float64Var(&f.guidanceWeight, "guidance-weight", tts.DefaultGuidanceWeight, "Guidance weight (0.2-0.9)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed (0 for nondeterministic)")
	cmd.Flags().BoolVar(&f.play, "play", false, "Play the result on the default audio device")

	return cmd
}

func readSynthText(flagText string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(flagText) != "" {
		return flagText, nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("no text given; use --text or pipe text on stdin")
	}
	return string(data), nil
}

func resolveReference(cfg config.Config, ref, voice string) (string, error) {
	if ref != "" && voice != "" {
		return "", fmt.Errorf("--ref and --voice are mutually exclusive")
	}
	if voice == "" {
		return ref, nil
	}

	lib, err := tts.LoadVoiceLibrary(cfg.Paths.VoicesManifest)
	if err != nil {
		return "", err
	}
	return lib.Resolve(voice)
}

func writeSynthOutput(out string, wav []byte, stdout io.Writer) error {
	if out == "-" {
		_, err := stdout.Write(wav)
		return err
	}
	if err := os.WriteFile(out, wav, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	return nil
}
