package pii

import "github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"

// DetectorInput represents the input for PII detection.
type DetectorInput struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// DetectorOutput represents the output of PII detection.
type DetectorOutput struct {
	Text     string         `json:"text"`
	Entities []model.Entity `json:"entities"`
}

// TokenPrediction is one raw token-classification prediction using BIO-style
// labels (B-X / I-X / O). Offsets are byte positions in the classified text.
type TokenPrediction struct {
	Word     string  `json:"word"`
	Label    string  `json:"entity"`
	Score    float64 `json:"score"`
	StartPos int     `json:"start"`
	EndPos   int     `json:"end"`
}
