package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/hemolens/hemolens/internal/core/domain"
)

// NewExerciseRulesTool creates the deterministic keyword-rule fallback for
// exercise planning, the counterpart of the nutrition rules tool.
func NewExerciseRulesTool() *domain.Tool {
	return &domain.Tool{
		Name:        domain.ToolExerciseRules,
		Description: "Generates an exercise plan based on blood test data.",
		Parameters: domain.ToolParameters{
			Type: "object",
			Properties: map[string]interface{}{
				"blood_report_data": map[string]interface{}{
					"type":        "string",
					"description": "Blood report data to create an exercise plan.",
				},
			},
			Required: []string{"blood_report_data"},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (string, error) {
			data, ok := params["blood_report_data"].(string)
			if !ok || data == "" {
				return "", fmt.Errorf("blood_report_data is required")
			}
			return ExerciseRecommendations(data), nil
		},
	}
}

// ExerciseRecommendations applies the same keyword-rule scheme as
// NutritionRecommendations, with hypertension as an additional marker.
func ExerciseRecommendations(reportData string) string {
	data := strings.ToLower(collapseSpaces(reportData))

	var recommendations []string
	if strings.Contains(data, "anemia") || strings.Contains(data, "low hemoglobin") {
		recommendations = append(recommendations,
			"Include moderate walking or cycling 3-4 times a week to improve stamina, but avoid high-intensity workouts until anemia is resolved.")
	}
	if strings.Contains(data, "high cholesterol") || strings.Contains(data, "cholesterol") {
		recommendations = append(recommendations,
			"Incorporate aerobic exercises like brisk walking, swimming, or jogging for at least 150 minutes per week to help manage cholesterol levels.")
	}
	if strings.Contains(data, "high glucose") || strings.Contains(data, "diabetes") {
		recommendations = append(recommendations,
			"Add regular aerobic activity and light resistance training to help control blood sugar levels.")
	}
	if strings.Contains(data, "hypertension") || strings.Contains(data, "high blood pressure") {
		recommendations = append(recommendations,
			"Practice low-impact exercises such as walking, yoga, or swimming, and avoid heavy weightlifting.")
	}
	if len(recommendations) == 0 {
		recommendations = []string{
			"Engage in at least 150 minutes of moderate aerobic exercise per week (e.g., brisk walking, cycling).",
			"Include 2 days of light strength training to support overall health.",
			"Incorporate flexibility and balance exercises, such as yoga or stretching, to reduce injury risk.",
		}
	}
	return strings.Join(recommendations, "\n")
}
