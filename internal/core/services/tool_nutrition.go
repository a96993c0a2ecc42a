package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/hemolens/hemolens/internal/core/domain"
)

// NewNutritionRulesTool creates the deterministic keyword-rule fallback for
// nutrition advice. It is an auxiliary, lower-quality capability offered to
// the analysis engine; the canonical path is still the engine itself.
func NewNutritionRulesTool() *domain.Tool {
	return &domain.Tool{
		Name:        domain.ToolNutritionRules,
		Description: "Analyzes blood report data and provides nutrition recommendations.",
		Parameters: domain.ToolParameters{
			Type: "object",
			Properties: map[string]interface{}{
				"blood_report_data": map[string]interface{}{
					"type":        "string",
					"description": "Blood report data to analyze.",
				},
			},
			Required: []string{"blood_report_data"},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (string, error) {
			data, ok := params["blood_report_data"].(string)
			if !ok || data == "" {
				return "", fmt.Errorf("blood_report_data is required")
			}
			return NutritionRecommendations(data), nil
		},
	}
}

// NutritionRecommendations scans lowercased report text for known markers
// and appends one fixed recommendation per match. With no recognized marker
// it returns the generic three-item set.
func NutritionRecommendations(reportData string) string {
	data := strings.ToLower(collapseSpaces(reportData))

	var recommendations []string
	if strings.Contains(data, "anemia") || strings.Contains(data, "low hemoglobin") {
		recommendations = append(recommendations,
			"Increase intake of iron-rich foods (e.g., spinach, lentils, red meat) and vitamin C to enhance absorption.")
	}
	if strings.Contains(data, "high cholesterol") || strings.Contains(data, "cholesterol") {
		recommendations = append(recommendations,
			"Adopt a diet low in saturated fats and cholesterol; increase fiber intake with fruits, vegetables, and whole grains.")
	}
	if strings.Contains(data, "high glucose") || strings.Contains(data, "diabetes") {
		recommendations = append(recommendations,
			"Limit simple sugars and refined carbs; focus on whole grains, lean proteins, and plenty of non-starchy vegetables.")
	}
	if strings.Contains(data, "vitamin d") || strings.Contains(data, "low vitamin d") {
		recommendations = append(recommendations,
			"Increase vitamin D intake through fortified foods, fatty fish, or supplements as advised by a healthcare provider.")
	}
	if len(recommendations) == 0 {
		recommendations = []string{
			"Maintain a balanced diet rich in vegetables, fruits, whole grains, and lean proteins.",
			"Stay hydrated and limit processed foods, added sugars, and excess salt.",
			"Consult a registered dietitian for personalized nutrition advice based on your full blood report.",
		}
	}
	return strings.Join(recommendations, "\n")
}

// collapseSpaces reduces runs of two or more spaces to a single space.
// Applied before keyword matching so spacing artifacts from PDF extraction
// do not break marker detection.
func collapseSpaces(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}
