package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/example/go-chatter-tts/internal/audio"
	"github.com/example/go-chatter-tts/internal/tts"
	"github.com/spf13/cobra"
)

func newSynthCmd() *cobra.Command {
	var text string
	var language string
	var voice string
	var out string
	var exaggeration float64
	var cfgWeight float64
	var temperature float64
	var speedFactor float64
	var referenceAudio string

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize text to a WAV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			inputText, err := readSynthText(text, os.Stdin)
			if err != nil {
				return err
			}

			svc, _, err := buildService(cfg)
			if err != nil {
				return err
			}
			defer svc.ClearCache()

			req := tts.Request{
				Text:     inputText,
				Language: language,
				Voice:    voice,
			}
			flags := cmd.Flags()
			if flags.Changed("exaggeration") {
				req.Exaggeration = &exaggeration
			}
			if flags.Changed("cfg-weight") {
				req.CFGWeight = &cfgWeight
			}
			if flags.Changed("temperature") {
				req.Temperature = &temperature
			}
			if flags.Changed("speed-factor") {
				req.SpeedFactor = &speedFactor
			}

			if referenceAudio != "" {
				data, err := os.ReadFile(referenceAudio)
				if err != nil {
					return fmt.Errorf("read reference audio: %w", err)
				}
				req.ReferenceAudio = &tts.ReferenceAudio{
					Filename: referenceAudio,
					Data:     data,
				}
			}

			result, err := svc.Synthesize(cmd.Context(), req)
			if err != nil {
				return err
			}

			wavBytes, err := audio.EncodeWAV(result.Samples, result.SampleRate)
			if err != nil {
				return err
			}

			return writeSynthOutput(out, wavBytes)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to synthesize ('-' or empty reads stdin)")
	cmd.Flags().StringVar(&language, "language", "", "Language code (defaults to the configured default)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice preset name")
	cmd.Flags().StringVarP(&out, "output-path", "o", "out.wav", "Output WAV path ('-' writes stdout)")
	cmd.Flags().Float64Var(&exaggeration, "exaggeration", 0.5, "Emotion exaggeration [0, 1]")
	cmd.Flags().Float64Var(&cfgWeight, "cfg-weight", 0.5, "Classifier-free guidance weight [0.1, 1]")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "Sampling temperature [0.05, 5]")
	cmd.Flags().Float64Var(&speedFactor, "speed-factor", 1.0, "Playback speed factor [0.5, 2]")
	cmd.Flags().StringVar(&referenceAudio, "reference-audio", "", "Path to a voice-cloning prompt WAV")

	return cmd
}

// readSynthText resolves the input text, reading stdin when the flag is
// empty or "-".
func readSynthText(flagText string, stdin io.Reader) (string, error) {
	if flagText != "" && flagText != "-" {
		return flagText, nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no input text: pass --text or pipe text on stdin")
	}
	return text, nil
}

func writeSynthOutput(path string, wavBytes []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(wavBytes)
		return err
	}

	if err := os.WriteFile(path, wavBytes, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	_, _ = fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", len(wavBytes), path)
	return nil
}
