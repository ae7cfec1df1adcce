package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-voice-clone/internal/onnx"
)

func newModelDownloadCmd() *cobra.Command {
	var opts onnx.FetchOptions

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the ONNX voice cloning bundle from Hugging Face",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.OutDir == "" {
				cfg, err := requireConfig()
				if err != nil {
					return err
				}
				opts.OutDir = cfg.Paths.ModelDir
			}
			if opts.HFToken == "" {
				opts.HFToken = os.Getenv("HF_TOKEN")
			}
			opts.Stdout = cmd.OutOrStdout()

			if err := onnx.Fetch(cmd.Context(), opts); err != nil {
				return fmt.Errorf("model download failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Repo, "hf-repo", "", "Hugging Face repository holding voiceclone.json")
	cmd.Flags().StringVar(&opts.Revision, "revision", "main", "Repository revision")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", "", "Directory where model files are stored (default: model_dir)")
	cmd.Flags().StringVar(&opts.HFToken, "hf-token", "", "Hugging Face token (falls back to HF_TOKEN env var)")
	cmd.Flags().StringVar(&opts.HubURL, "hub-url", onnx.DefaultHubURL, "Hugging Face hub base URL")
	_ = cmd.MarkFlagRequired("hf-repo")

	return cmd
}
