package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-cache/internal/config"
	"github.com/book-expert/tts-cache/internal/core"
	"github.com/bytedance/sonic"
	"github.com/dustin/go-humanize"
	"github.com/nats-io/nats.go"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// Flag names.
const (
	flagNATSURL   = "nats-url"
	flagTimeout   = "timeout"
	flagJSON      = "json"
	flagText      = "text"
	flagFile      = "file"
	flagFormat    = "format"
	flagOutput    = "output"
	flagUser      = "user"
	flagTenant    = "tenant"
	flagGenerate  = "generate-subject"
	flagStatus    = "status-subject"
	flagSpeak     = "speak-subject"
	envNATSURL    = "TTS_NATS_URL"
	defaultNATS   = nats.DefaultURL
	defaultOutput = "speech"
)

// Error messages.
const (
	errEitherTextOrFile  = "either --text or --file must be provided"
	errCannotSpecifyBoth = "cannot specify both --text and --file"
)

type clientOptions struct {
	natsURL  string
	timeout  time.Duration
	asJSON   bool
	userID   string
	tenantID string
	subjects subjects
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	opts := &clientOptions{}

	rootCmd := &cobra.Command{
		Use:           "tts-client",
		Short:         "Generate, inspect and preview cached article audio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)

	natsURL := os.Getenv(envNATSURL)
	if natsURL == "" {
		natsURL = defaultNATS
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.natsURL, flagNATSURL, natsURL, "NATS server URL (env "+envNATSURL+")")
	flags.DurationVar(&opts.timeout, flagTimeout, 5*time.Minute, "request timeout")
	flags.BoolVar(&opts.asJSON, flagJSON, false, "print replies as JSON instead of TOML")
	flags.StringVar(&opts.userID, flagUser, "", "user id recorded in the event header")
	flags.StringVar(&opts.tenantID, flagTenant, "", "tenant id recorded in the event header")
	flags.StringVar(&opts.subjects.generate, flagGenerate, "tts.generate", "generate request subject")
	flags.StringVar(&opts.subjects.status, flagStatus, "tts.status", "status request subject")
	flags.StringVar(&opts.subjects.speak, flagSpeak, "tts.speak", "speak request subject")

	rootCmd.AddCommand(
		newGenerateCmd(opts),
		newStatusCmd(opts),
		newSpeakCmd(opts),
		newConfigCmd(),
	)

	return rootCmd
}

func newGenerateCmd(opts *clientOptions) *cobra.Command {
	var (
		text   string
		file   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "generate CONTENT_ID",
		Short: "Generate (or fetch cached) audio for a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(cmd, text, file)
			if err != nil {
				return err
			}

			return withRequester(opts, func(r *requester) error {
				reply, err := r.generate(args[0], body, core.Format(format))
				if err != nil {
					return err
				}

				return printReply(cmd.OutOrStdout(), opts.asJSON, reply)
			})
		},
	}

	cmd.Flags().StringVarP(&text, flagText, "t", "", "content markup")
	cmd.Flags().StringVarP(&file, flagFile, "f", "", "read content markup from a file (- for stdin)")
	cmd.Flags().StringVar(&format, flagFormat, string(core.FormatHTML), "markup format: html, markdown or plain")

	return cmd
}

func newStatusCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status CONTENT_ID",
		Short: "Show the playback status of a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRequester(opts, func(r *requester) error {
				reply, err := r.status(args[0])
				if err != nil {
					return err
				}

				return printReply(cmd.OutOrStdout(), opts.asJSON, reply)
			})
		},
	}
}

func newSpeakCmd(opts *clientOptions) *cobra.Command {
	var (
		text   string
		file   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "speak",
		Short: "Synthesize short text in one request and save the audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := readBody(cmd, text, file)
			if err != nil {
				return err
			}

			return withRequester(opts, func(r *requester) error {
				audioData, contentType, err := r.speak(body)
				if err != nil {
					return err
				}

				path := output
				if path == "" {
					path = defaultOutput + "." + strings.TrimPrefix(contentType, "audio/")
				}

				err = os.WriteFile(path, audioData, 0o644)
				if err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Generated: %s (%s)\n", path, humanize.Bytes(uint64(len(audioData))))

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&text, flagText, "t", "", "text to speak")
	cmd.Flags().StringVarP(&file, flagFile, "f", "", "read text from a file (- for stdin)")
	cmd.Flags().StringVarP(&output, flagOutput, "o", "", "output file (default speech.<format>)")

	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the service configuration resolved from project.toml and the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(os.TempDir(), "tts-client.log")
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer log.Close()

			cfg, err := config.Load(log)
			if err != nil {
				return err
			}

			return printReply(cmd.OutOrStdout(), false, cfg)
		},
	}
}

func withRequester(opts *clientOptions, fn func(r *requester) error) error {
	natsConnection, err := nats.Connect(opts.natsURL, nats.Name("tts-client"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", opts.natsURL, err)
	}
	defer natsConnection.Close()

	return fn(&requester{
		natsConnection: natsConnection,
		subjects:       opts.subjects,
		timeout:        opts.timeout,
		userID:         opts.userID,
		tenantID:       opts.tenantID,
	})
}

func readBody(cmd *cobra.Command, text, file string) (string, error) {
	switch {
	case text == "" && file == "":
		return "", errors.New(errEitherTextOrFile)
	case text != "" && file != "":
		return "", errors.New(errCannotSpecifyBoth)
	case text != "":
		return text, nil
	}

	var (
		data []byte
		err  error
	)

	if file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}

	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}

	return string(data), nil
}

func printReply(out io.Writer, asJSON bool, reply any) error {
	var (
		data []byte
		err  error
	)

	if asJSON {
		data, err = sonic.ConfigStd.MarshalIndent(reply, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = toml.Marshal(reply)
	}

	if err != nil {
		return fmt.Errorf("failed to format reply: %w", err)
	}

	_, err = out.Write(data)

	return err
}
