package ingest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// pdfToText extracts plain text from a PDF by shelling out to pdftotext
// (poppler-utils). Extraction is lossy but adequate for retrieval.
func pdfToText(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not found in PATH: %w", err)
	}

	out, err := exec.CommandContext(ctx, "pdftotext", path, "-").Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext %s: %w", path, err)
	}
	return strings.TrimSpace(string(out)), nil
}
