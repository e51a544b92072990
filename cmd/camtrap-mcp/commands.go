package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironsheep/camtrap-metadata/internal/footer"
	"github.com/ironsheep/camtrap-metadata/internal/server"
)

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	var a *app

	cmd := &cobra.Command{
		Use:   "camtrap-mcp",
		Short: "Camera-trap image metadata tools and MCP server",
		Long: `camtrap-mcp reads and writes metadata for camera-trap images.

It merges sidecar files, embedded EXIF and the telemetry footer burned into
each frame, and serves these operations to MCP clients over stdio.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp(flags)
			return err
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML configuration file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file to load if present")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.oracle, "oracle", "", "Footer oracle: vision, ocr or none")

	current := func() *app { return a }
	cmd.AddCommand(
		newServeCmd(current),
		newInspectCmd(current),
		newParseCmd(),
		newExtractCmd(current),
		newDebugFooterCmd(current),
		newVersionCmd(current),
	)
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			oracle, err := a.oracle()
			if err != nil {
				return err
			}
			corrections, err := a.corrections()
			if err != nil {
				return err
			}
			opts := []server.Option{
				server.WithCache(a.cache),
				server.WithLogger(a.log),
				server.WithOracle(oracle),
				server.WithRecognizer(a.ocr),
				server.WithCorrections(corrections),
			}
			if id, err := a.identifier(); err != nil {
				a.log.WithError(err).Warn("species identification disabled")
			} else {
				opts = append(opts, server.WithIdentifier(id))
			}

			a.log.WithFields(logrus.Fields{
				"version": Version,
				"oracle":  a.cfg.Oracle,
			}).Info("starting MCP server")
			return server.New(opts...).Run(cmd.Context())
		},
	}
}

func newInspectCmd(current func() *app) *cobra.Command {
	var noFooter bool
	cmd := &cobra.Command{
		Use:   "inspect <image>",
		Short: "Print the merged metadata record of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := current().engine(!noFooter)
			if err != nil {
				return err
			}
			rec, err := engine.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().BoolVar(&noFooter, "no-footer", false, "Do not read the footer band")
	return cmd
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "parse <text>",
		Short:   "Parse footer text into date, temperature and camera ID",
		Example: `  camtrap-mcp parse "2024/04/16 14:14:59 21C 70F CT10"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), footer.NewParser().Analyze(strings.Join(args, " ")))
		},
	}
}

func newExtractCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <image>",
		Short: "Read the footer of an image with the configured oracle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			ex, err := a.extractor()
			if err != nil {
				return err
			}
			img, err := a.cache.Load(args[0])
			if err != nil {
				return err
			}
			out, err := ex.Run(cmd.Context(), img)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newDebugFooterCmd(current func() *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "debug-footer <image>",
		Short: "Save every footer region as PNG with brightness and OCR details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			img, err := a.cache.Load(args[0])
			if err != nil {
				return err
			}
			dir := outDir
			if dir == "" {
				dir = filepath.Dir(args[0])
			}
			d := footer.Debugger{Recognizer: a.ocr, Parser: footer.NewParser(), Log: a.log}
			report, err := d.Run(cmd.Context(), img, args[0], dir)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default: the image's folder)")
	return cmd
}

func newVersionCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and OCR backend information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s\n", server.Name, Version)
			fmt.Fprintf(w, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)

			info := current().ocr.Info()
			if info.Available {
				fmt.Fprintf(w, "  OCR: %s %s (%s)\n", info.Backend, info.Version, info.Language)
			} else {
				fmt.Fprintf(w, "  OCR: unavailable (%s)\n", info.Error)
			}
			return nil
		},
	}
}
