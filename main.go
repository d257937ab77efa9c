package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/config"
	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii"
	detectors "github.com/ch8ri0s/PII-Anonymizer-sub009/pii/detectors"
	"github.com/ch8ri0s/PII-Anonymizer-sub009/store"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file from current directory")
	} else {
		log.Printf("Note: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "Path to JSON config file")
	modelDir := flag.String("model-dir", "", "ONNX model directory (overrides MODEL_DIRECTORY)")
	outDir := flag.String("out-dir", ".", "Output directory for anonymized text and mapping files")
	rulesOnly := flag.Bool("rules-only", false, "Skip the ML detector even when a model is configured")
	flag.Parse()

	if *configPath != "" {
		if err := config.LoadFromFile(*configPath, cfg); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}
	config.LoadFromEnv(cfg)
	if *modelDir != "" {
		cfg.ModelDirectory = *modelDir
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Printf("Sentry initialization failed: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			defer func() {
				if r := recover(); r != nil {
					sentry.CurrentHub().Recover(r)
					sentry.Flush(2 * time.Second)
					panic(r)
				}
			}()
		}
	}

	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "usage: anonymizer [flags] <file>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	var mlDetector detectors.Detector
	if cfg.ModelDirectory != "" && !*rulesOnly {
		detectorConfig := detectors.DefaultMLDetectorConfig()
		detectorConfig.ConfidenceThreshold = cfg.Detection.MLConfidenceThreshold
		manager, err := pii.NewModelManager(cfg.ModelDirectory, detectorConfig)
		if err != nil {
			log.Fatalf("Failed to create model manager: %v", err)
		}
		defer func() {
			if err := manager.Close(); err != nil {
				log.Printf("Failed to close model manager: %v", err)
			}
		}()

		mlDetector, err = manager.GetDetector()
		if err != nil {
			log.Printf("ML detector unavailable, running rule-only: %v", err)
		}
	} else {
		log.Println("Running rule-only: no model directory configured")
	}

	processor, err := pii.NewProcessor(cfg.PipelineConfig(), mlDetector)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	var mappingStore store.MappingStore
	if cfg.Database.Enabled {
		mappingStore, err = store.NewPostgresStore(store.Config{
			ConnectionString: cfg.Database.ConnectionString(),
			MaxOpenConns:     cfg.Database.MaxOpenConns,
			MaxIdleConns:     cfg.Database.MaxIdleConns,
			MaxLifetime:      time.Duration(cfg.Database.MaxLifetime) * time.Second,
		})
		if err != nil {
			log.Fatalf("Failed to connect to mapping store: %v", err)
		}
		defer func() {
			if err := mappingStore.Close(); err != nil {
				log.Printf("Failed to close mapping store: %v", err)
			}
		}()
	}

	ctx := context.Background()
	for _, input := range inputs {
		if err := processFile(ctx, processor, mappingStore, input, *outDir); err != nil {
			log.Printf("Failed to process %s: %v", input, err)
			sentry.CaptureException(err)
		}
	}
}

// processFile anonymizes one document. Each call gets a fresh session inside
// Process, so pseudonym counters never carry over between files.
func processFile(ctx context.Context, processor *pii.Processor, mappingStore store.MappingStore, input, outDir string) error {
	data, err := os.ReadFile(input) // #nosec G304 - paths come from the command line
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	started := time.Now()
	result, err := processor.Process(ctx, string(data))
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}
	log.Printf("Processed %s in %s: %d entities, %d mapped",
		input, time.Since(started).Round(time.Millisecond),
		len(result.Entities), len(result.Mapping.Entities))

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	textPath := filepath.Join(outDir, base+".anonymized.txt")
	if err := os.WriteFile(textPath, []byte(result.AnonymizedText), 0600); err != nil {
		return fmt.Errorf("failed to write anonymized text: %w", err)
	}

	mappingJSON, err := json.MarshalIndent(result.Mapping, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}
	mappingPath := filepath.Join(outDir, base+".mapping.json")
	if err := os.WriteFile(mappingPath, mappingJSON, 0600); err != nil {
		return fmt.Errorf("failed to write mapping: %w", err)
	}

	if mappingStore != nil {
		if err := mappingStore.SaveMapping(ctx, filepath.Base(input), result.Mapping); err != nil {
			return fmt.Errorf("failed to persist mapping: %w", err)
		}
	}
	return nil
}
