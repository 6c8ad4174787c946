package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/andresmejia3/streamsnap/internal/config"
	"github.com/andresmejia3/streamsnap/internal/match"
	"github.com/andresmejia3/streamsnap/internal/utils"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <image_path>",
	Short: "Run text recognition on one image and score it against the target",
	Long:  "Useful for tuning --threshold and the OCR settings against a screenshot before a live run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runOCR(cmd.Context(), args[0], cfg)
	},
}

func init() {
	f := ocrCmd.Flags()
	f.StringVarP(&flagCfg.Target, "target", "t", "", "Text to score the recognized text against")
	f.IntVar(&flagCfg.Threshold, "threshold", flagCfg.Threshold, "Minimum partial-ratio score (0-100) for a match, inclusive")
	addOCRFlags(f)
	rootCmd.AddCommand(ocrCmd)
}

// addOCRFlags registers the recognition settings shared by watch and ocr.
func addOCRFlags(f *pflag.FlagSet) {
	f.StringVar(&flagCfg.TesseractBin, "tesseract-bin", flagCfg.TesseractBin, "tesseract executable")
	f.StringVar(&flagCfg.OCRLang, "lang", flagCfg.OCRLang, "tesseract language")
	f.IntVar(&flagCfg.OCRPSM, "psm", flagCfg.OCRPSM, "tesseract page segmentation mode (0 = tesseract default)")
	f.DurationVar(&flagCfg.OCRTimeout, "ocr-timeout", flagCfg.OCRTimeout, "Per-image recognition limit")
	f.BoolVar(&flagCfg.OCRGrayscale, "grayscale", flagCfg.OCRGrayscale, "Convert images to grayscale before recognition")
}

func runOCR(ctx context.Context, imagePath string, c *config.Config) error {
	if c.Threshold < 0 || c.Threshold > 100 {
		err := fmt.Errorf("must be between 0 and 100, got %d", c.Threshold)
		utils.ShowError("Invalid threshold", err, nil)
		return err
	}

	imgData, err := os.ReadFile(imagePath)
	if err != nil {
		utils.ShowError("Failed to read image file", err, nil)
		return err
	}

	fmt.Fprintln(os.Stderr, "🔍 Recognizing text...")
	text, err := newTesseract(c).Extract(ctx, imgData)
	if err != nil {
		utils.ShowError("Text recognition failed", err, nil)
		return err
	}

	if display := strings.TrimSpace(text); display == "" {
		fmt.Println("❌ No text recognized in the provided image.")
	} else {
		fmt.Printf("📝 Recognized text:\n%s\n", display)
	}

	if c.Target == "" {
		return nil
	}

	score := match.Partial.Score(c.Target, text)
	if score >= c.Threshold {
		fmt.Printf("✅ Match: %q scored %d (threshold %d)\n", c.Target, score, c.Threshold)
	} else {
		fmt.Printf("❌ No match: %q scored %d (threshold %d)\n", c.Target, score, c.Threshold)
	}
	return nil
}
