package pii

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	detectors "github.com/ch8ri0s/PII-Anonymizer-sub009/pii/detectors"
)

// ModelManager owns the process-wide ML detector with thread-safe hot
// reload. The model handle is loaded once and treated as read-only between
// reloads; pipelines borrow the detector through GetDetector.
type ModelManager struct {
	mu              sync.RWMutex
	currentDetector detectors.Detector
	modelDirectory  string
	detectorConfig  detectors.MLDetectorConfig
	isHealthy       bool
	lastError       error
}

// ModelConfig holds the resolved paths of the required model files.
type ModelConfig struct {
	ModelPath     string
	TokenizerPath string
	LabelMapPath  string
}

// NewModelManager creates a manager and attempts an initial load. The
// detector config (confidence threshold, chunking, retries) applies to every
// detector the manager builds, across reloads. A failed load leaves the
// manager unhealthy instead of failing: callers run rule-only until a reload
// succeeds.
func NewModelManager(directory string, detectorConfig detectors.MLDetectorConfig) (*ModelManager, error) {
	mm := &ModelManager{modelDirectory: directory, detectorConfig: detectorConfig}
	if err := mm.ReloadModel(directory); err != nil {
		log.Printf("[ModelManager] initial model load failed: %v", err)
		log.Printf("[ModelManager] created unhealthy; pipelines degrade to rule-only")
	}
	return mm, nil
}

// GetDetector returns the current detector.
func (mm *ModelManager) GetDetector() (detectors.Detector, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	if !mm.isHealthy {
		return nil, fmt.Errorf("model is unhealthy: %w", mm.lastError)
	}
	if mm.currentDetector == nil {
		return nil, fmt.Errorf("no detector available")
	}
	return mm.currentDetector, nil
}

// ReloadModel validates the directory, loads a new detector, runs a
// validation inference and only then swaps it in. The old detector is closed
// outside the critical section.
func (mm *ModelManager) ReloadModel(newDirectory string) error {
	log.Printf("[ModelManager] reloading model from %s", newDirectory)

	config, err := mm.validateDirectory(newDirectory)
	if err != nil {
		mm.setUnhealthy(err)
		return fmt.Errorf("validation failed: %w", err)
	}

	classifier, err := detectors.NewONNXTokenClassifier(
		config.ModelPath, config.TokenizerPath, config.LabelMapPath)
	if err != nil {
		mm.setUnhealthy(err)
		return fmt.Errorf("failed to load model: %w", err)
	}
	newDetector := detectors.NewMLDetector(classifier, mm.detectorConfig)

	// Validation inference before the swap: a model that loads but cannot
	// classify must never become current.
	testInput := detectors.DetectorInput{Text: "Test with John Smith"}
	if _, err := newDetector.Detect(context.Background(), testInput); err != nil {
		if closeErr := newDetector.Close(); closeErr != nil {
			log.Printf("[ModelManager] failed to close rejected detector: %v", closeErr)
		}
		mm.setUnhealthy(err)
		return fmt.Errorf("model validation failed: %w", err)
	}

	mm.mu.Lock()
	oldDetector := mm.currentDetector
	mm.currentDetector = newDetector
	mm.modelDirectory = newDirectory
	mm.isHealthy = true
	mm.lastError = nil
	mm.mu.Unlock()

	if oldDetector != nil {
		if err := oldDetector.Close(); err != nil {
			log.Printf("[ModelManager] failed to close old detector: %v", err)
		}
	}
	log.Printf("[ModelManager] model reload complete for %s", newDirectory)
	return nil
}

func (mm *ModelManager) setUnhealthy(err error) {
	mm.mu.Lock()
	mm.isHealthy = false
	mm.lastError = err
	mm.mu.Unlock()
}

// IsHealthy reports whether the current model is usable.
func (mm *ModelManager) IsHealthy() bool {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.isHealthy
}

// GetLastError returns the most recent load or validation error.
func (mm *ModelManager) GetLastError() error {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.lastError
}

// GetInfo returns the current model state for diagnostics.
func (mm *ModelManager) GetInfo() map[string]interface{} {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	info := map[string]interface{}{
		"directory": mm.modelDirectory,
		"healthy":   mm.isHealthy,
	}
	if mm.lastError != nil {
		info["error"] = mm.lastError.Error()
	} else {
		info["error"] = nil
	}
	return info
}

// validateDirectory checks that dir exists and contains the model,
// tokenizer and label-mapping files.
func (mm *ModelManager) validateDirectory(dir string) (*ModelConfig, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory does not exist: %s", dir)
		}
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	requiredFiles := []string{
		"model_quantized.onnx",
		"tokenizer.json",
		"label_mappings.json",
	}
	var missing []string
	for _, name := range requiredFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required files in directory: %v", missing)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}
	return &ModelConfig{
		ModelPath:     filepath.Join(absDir, "model_quantized.onnx"),
		TokenizerPath: filepath.Join(absDir, "tokenizer.json"),
		LabelMapPath:  filepath.Join(absDir, "label_mappings.json"),
	}, nil
}

// Close closes the current detector.
func (mm *ModelManager) Close() error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.currentDetector != nil {
		if err := mm.currentDetector.Close(); err != nil {
			return fmt.Errorf("failed to close detector: %w", err)
		}
		mm.currentDetector = nil
	}
	mm.isHealthy = false
	return nil
}
