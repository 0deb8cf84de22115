package chart

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// VerifyPDF checks that path is a readable PDF and returns its page count.
func VerifyPDF(path string) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return 0, fmt.Errorf("validate pdf: %w", err)
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}
