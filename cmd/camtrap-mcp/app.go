package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/camtrap-metadata/internal/config"
	"github.com/ironsheep/camtrap-metadata/internal/footer"
	"github.com/ironsheep/camtrap-metadata/internal/imaging"
	"github.com/ironsheep/camtrap-metadata/internal/metadata"
	"github.com/ironsheep/camtrap-metadata/internal/ocr"
	"github.com/ironsheep/camtrap-metadata/internal/species"
	"github.com/ironsheep/camtrap-metadata/internal/vision"
)

// app holds the components shared by every command.
type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	cache *imaging.ImageCache
	ocr   *ocr.Engine
}

type globalFlags struct {
	configFile string
	envFile    string
	logLevel   string
	oracle     string
}

func newApp(flags *globalFlags) (*app, error) {
	if err := config.LoadEnvFile(flags.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.oracle != "" {
		cfg.Oracle = flags.oracle
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &app{
		cfg:   cfg,
		log:   cfg.NewLogger(os.Stderr),
		cache: imaging.NewImageCache(),
		ocr:   ocr.New(ocr.Config{Language: cfg.OCR.Language, TessdataPrefix: cfg.OCR.TessdataPrefix}),
	}, nil
}

// oracle builds the footer oracle selected by the configuration. It returns
// nil for the "none" mode.
func (a *app) oracle() (footer.Oracle, error) {
	switch a.cfg.Oracle {
	case config.OracleVision:
		client, err := vision.New(a.cfg.FooterVision())
		if err != nil {
			return nil, err
		}
		prompt, err := readOptional(a.cfg.Footer.PromptFile)
		if err != nil {
			return nil, err
		}
		a.log.WithField("provider", client.Name()).Debug("footer oracle")
		return footer.NewVisionOracle(client, prompt), nil
	case config.OracleOCR:
		a.log.WithField("language", a.ocr.Language()).Debug("footer oracle: tesseract")
		return footer.FromText(a.ocr, footer.NewParser()), nil
	default:
		return nil, nil
	}
}

func (a *app) extractor() (*footer.Extractor, error) {
	o, err := a.oracle()
	if err != nil {
		return nil, err
	}
	return footer.NewExtractor(o, footer.WithCache(a.cache), footer.WithLogger(a.log)), nil
}

func (a *app) engine(withFooter bool) (*metadata.Engine, error) {
	opts := []metadata.Option{metadata.WithLogger(a.log)}
	if withFooter {
		ex, err := a.extractor()
		if err != nil {
			return nil, err
		}
		opts = append(opts, metadata.WithFooter(ex))
	}
	return metadata.NewEngine(opts...), nil
}

func (a *app) identifier() (*species.Identifier, error) {
	client, err := vision.New(a.cfg.SpeciesVision())
	if err != nil {
		return nil, err
	}
	tmpl, err := species.LoadTemplate(a.cfg.Species.PromptFile)
	if err != nil {
		return nil, err
	}
	return species.NewIdentifier(client,
		species.WithTemplate(tmpl),
		species.WithLocation(a.cfg.Species.Location, a.cfg.Species.Region),
		species.WithLogger(a.log),
	), nil
}

func (a *app) corrections() (footer.Corrections, error) {
	return footer.LoadCorrections(a.cfg.Footer.CorrectionsFile)
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
