package pii

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/daulet/tokenizers"
	onnxruntime "github.com/yalue/onnxruntime_go"
)

// onnxMaxSeqLen matches the model's max_position_embeddings. The ML adapter
// chunks documents before they reach this classifier.
const onnxMaxSeqLen = 512

// ONNXTokenClassifier implements TokenClassifier with a local quantized
// token-classification model. The model handle is loaded once and treated as
// read-only across calls; concurrent use must go through the ModelManager.
type ONNXTokenClassifier struct {
	tokenizer    *tokenizers.Tokenizer
	session      *onnxruntime.AdvancedSession
	inputTensor  *onnxruntime.Tensor[int64]
	maskTensor   *onnxruntime.Tensor[int64]
	outputTensor *onnxruntime.Tensor[float32]
	id2label     map[string]string
	numLabels    int
	modelPath    string
}

// safeUintToInt converts a uint to int with bounds checking.
func safeUintToInt(val uint) int {
	const maxInt = int(^uint(0) >> 1)
	if val <= uint(maxInt) {
		// #nosec G115 - Safe conversion with bounds checking
		return int(val)
	}
	return maxInt
}

// NewONNXTokenClassifier loads the tokenizer and label mapping. The inference
// session itself is created lazily on first use.
func NewONNXTokenClassifier(modelPath, tokenizerPath, labelMapPath string) (*ONNXTokenClassifier, error) {
	if libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); libPath != "" {
		onnxruntime.SetSharedLibraryPath(libPath)
	}
	if !onnxruntime.IsInitialized() {
		if err := onnxruntime.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
		}
	}

	tk, err := tokenizers.FromFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	labelData, err := os.ReadFile(labelMapPath) // #nosec G304 - path from validated model directory
	if err != nil {
		if closeErr := tk.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close tokenizer during cleanup: %v\n", closeErr)
		}
		return nil, fmt.Errorf("failed to read label mapping: %w", err)
	}

	var labelConfig struct {
		ID2Label map[string]string `json:"id2label"`
		Label2ID map[string]int    `json:"label2id"`
	}
	if err := json.Unmarshal(labelData, &labelConfig); err != nil {
		if closeErr := tk.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close tokenizer during cleanup: %v\n", closeErr)
		}
		return nil, fmt.Errorf("failed to parse label mapping: %w", err)
	}

	// Number of labels is the highest ID plus one; "-100" is the IGNORE
	// label and does not count.
	numLabels := 0
	for idStr := range labelConfig.ID2Label {
		if idStr == "-100" {
			continue
		}
		var id int
		if _, err := fmt.Sscanf(idStr, "%d", &id); err == nil && id >= numLabels {
			numLabels = id + 1
		}
	}
	if numLabels == 0 {
		numLabels = len(labelConfig.Label2ID)
	}

	return &ONNXTokenClassifier{
		tokenizer: tk,
		id2label:  labelConfig.ID2Label,
		numLabels: numLabels,
		modelPath: modelPath,
	}, nil
}

// GetName returns the name of this classifier.
func (c *ONNXTokenClassifier) GetName() string {
	return "onnx_token_classifier"
}

// Classify tokenizes text, runs one inference and returns per-token BIO
// predictions with byte offsets into text.
func (c *ONNXTokenClassifier) Classify(ctx context.Context, text string) ([]TokenPrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.session == nil {
		if err := c.initializeSession(); err != nil {
			return nil, fmt.Errorf("failed to initialize session: %w", err)
		}
	}

	encoding := c.tokenizer.EncodeWithOptions(text, true, tokenizers.WithReturnOffsets())
	tokenIDs := encoding.IDs
	if len(tokenIDs) > onnxMaxSeqLen {
		tokenIDs = tokenIDs[:onnxMaxSeqLen]
	}

	inputIDs := make([]int64, len(tokenIDs))
	attentionMask := make([]int64, len(tokenIDs))
	for i := range tokenIDs {
		inputIDs[i] = int64(tokenIDs[i])
		attentionMask[i] = 1
	}
	c.updateInputTensors(inputIDs, attentionMask)

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}

	return c.decodePredictions(text, tokenIDs, encoding.Offsets), nil
}

// decodePredictions converts raw logits into TokenPredictions, applying a
// softmax per token and dropping special tokens with empty offsets.
func (c *ONNXTokenClassifier) decodePredictions(text string, tokenIDs []uint32, offsets []tokenizers.Offset) []TokenPrediction {
	outputData := c.outputTensor.GetData()
	numTokens := len(tokenIDs)
	if len(offsets) < numTokens {
		numTokens = len(offsets)
	}

	var predictions []TokenPrediction
	for i := 0; i < numTokens; i++ {
		startIdx := i * c.numLabels
		endIdx := (i + 1) * c.numLabels
		if endIdx > len(outputData) {
			break
		}
		logits := outputData[startIdx:endIdx]

		maxLogit := float64(-math.MaxFloat64)
		bestClass := 0
		for j, logit := range logits {
			if float64(logit) > maxLogit {
				maxLogit = float64(logit)
				bestClass = j
			}
		}
		var sum float64
		for _, logit := range logits {
			sum += math.Exp(float64(logit) - maxLogit)
		}
		score := 1.0 / sum

		label, exists := c.id2label[fmt.Sprintf("%d", bestClass)]
		if !exists {
			label = "O"
		}

		start := safeUintToInt(offsets[i][0])
		end := safeUintToInt(offsets[i][1])
		if end <= start || end > len(text) {
			continue // special token
		}
		predictions = append(predictions, TokenPrediction{
			Word:     text[start:end],
			Label:    label,
			Score:    score,
			StartPos: start,
			EndPos:   end,
		})
	}
	return predictions
}

// initializeSession creates the inference session and its tensors.
func (c *ONNXTokenClassifier) initializeSession() error {
	batchSize := int64(1)
	inputShape := onnxruntime.NewShape(batchSize, int64(onnxMaxSeqLen))
	inputTensor, err := onnxruntime.NewTensor(inputShape, make([]int64, onnxMaxSeqLen))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	maskTensor, err := onnxruntime.NewTensor(inputShape, make([]int64, onnxMaxSeqLen))
	if err != nil {
		destroyTensors(inputTensor)
		return fmt.Errorf("failed to create mask tensor: %w", err)
	}
	outputShape := onnxruntime.NewShape(batchSize, int64(onnxMaxSeqLen), int64(c.numLabels))
	outputTensor, err := onnxruntime.NewEmptyTensor[float32](outputShape)
	if err != nil {
		destroyTensors(inputTensor, maskTensor)
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := onnxruntime.NewAdvancedSession(c.modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]onnxruntime.Value{inputTensor, maskTensor},
		[]onnxruntime.Value{outputTensor},
		nil)
	if err != nil {
		destroyTensors(inputTensor, maskTensor, outputTensor)
		return fmt.Errorf("failed to create session: %w", err)
	}

	c.session = session
	c.inputTensor = inputTensor
	c.maskTensor = maskTensor
	c.outputTensor = outputTensor
	return nil
}

func destroyTensors(tensors ...onnxruntime.Value) {
	for _, t := range tensors {
		if err := t.Destroy(); err != nil {
			fmt.Printf("Warning: failed to destroy tensor during cleanup: %v\n", err)
		}
	}
}

// updateInputTensors writes new token data into the reused input tensors.
func (c *ONNXTokenClassifier) updateInputTensors(inputIDs, attentionMask []int64) {
	inputData := c.inputTensor.GetData()
	maskData := c.maskTensor.GetData()
	for i := range inputData {
		inputData[i] = 0
		maskData[i] = 0
	}
	copy(inputData, inputIDs)
	copy(maskData, attentionMask)
}

// Close releases the session, tensors and tokenizer.
func (c *ONNXTokenClassifier) Close() error {
	var errs []error
	if c.session != nil {
		if err := c.session.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy session: %w", err))
		}
		destroyTensors(c.inputTensor, c.maskTensor, c.outputTensor)
		c.session = nil
	}
	if c.tokenizer != nil {
		if err := c.tokenizer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close tokenizer: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
