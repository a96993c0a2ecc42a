package services

import (
	"context"
	"fmt"

	"github.com/hemolens/hemolens/internal/core/domain"
	"github.com/hemolens/hemolens/internal/core/ports"
)

// NewReadBloodReportTool wraps the DocumentReader port as a tool so every
// specialist can pull the extracted report text by path.
func NewReadBloodReportTool(reader ports.DocumentReader) *domain.Tool {
	return &domain.Tool{
		Name:        domain.ToolReadBloodReport,
		Description: "Reads and extracts data from a blood test report PDF.",
		Parameters: domain.ToolParameters{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the PDF file to read.",
				},
			},
			Required: []string{"path"},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (string, error) {
			path, ok := params["path"].(string)
			if !ok || path == "" {
				return "", fmt.Errorf("path is required")
			}
			return reader.Read(ctx, path)
		},
	}
}
