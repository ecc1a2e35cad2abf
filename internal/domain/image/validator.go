package image

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"dronewatch-server-go/internal/platform/config"
	"dronewatch-server-go/internal/platform/logging"
)

// Validator checks captured frames against the camera security limits.
type Validator struct {
	config *config.SecurityConfig
	logger *logging.Logger
}

// NewValidator constructs a validator for the given limits.
func NewValidator(cfg *config.SecurityConfig, logger *logging.Logger) *Validator {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Validator{config: cfg, logger: logger}
}

var frameSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"jpg":  {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46},
}

// Validate decodes the header of raw and enforces format, size and dimension limits.
func (v *Validator) Validate(raw []byte, declaredFormat string) ValidationResult {
	result := ValidationResult{}
	declaredFormat = NormalizeFormat(declaredFormat)

	if len(raw) == 0 {
		result.Error = fmt.Errorf("empty frame payload")
		return result
	}

	if v.config.MaxFileSize > 0 && int64(len(raw)) > v.config.MaxFileSize {
		result.Error = fmt.Errorf("frame size exceeds limit: %d bytes (max %d bytes)", len(raw), v.config.MaxFileSize)
		result.SecurityRisk = "file too large"
		v.logger.WarnTag("FRAME", "oversized frame: size=%d max_size=%d", len(raw), v.config.MaxFileSize)
		return result
	}

	if declaredFormat != "" && !v.formatAllowed(declaredFormat) {
		result.Error = fmt.Errorf("unsupported format: %s", declaredFormat)
		result.SecurityRisk = "unapproved format"
		return result
	}

	result = v.decodeHeader(raw, declaredFormat)
	if !result.IsValid {
		if declaredFormat != "" && !matchesSignature(raw, declaredFormat) {
			v.logger.WarnTag("FRAME", "signature mismatch: declared_format=%s header=%x",
				declaredFormat, raw[:min(len(raw), 16)])
		}
		return result
	}
	result.FileSize = int64(len(raw))
	return result
}

func (v *Validator) formatAllowed(format string) bool {
	if v.config == nil || len(v.config.AllowedFormats) == 0 || format == "" {
		return true
	}
	for _, allowed := range v.config.AllowedFormats {
		if NormalizeFormat(allowed) == format {
			return true
		}
	}
	return false
}

func matchesSignature(raw []byte, format string) bool {
	signature, ok := frameSignatures[format]
	if !ok {
		return true
	}
	return len(raw) >= len(signature) && bytes.Equal(signature, raw[:len(signature)])
}

func (v *Validator) decodeHeader(raw []byte, format string) ValidationResult {
	result := ValidationResult{Format: format}

	cfg, actualFormat, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		result.Error = fmt.Errorf("decode frame header: %w", err)
		result.SecurityRisk = "corrupted frame data"
		return result
	}
	if actualFormat != "" {
		result.Format = NormalizeFormat(actualFormat)
	}
	if !v.formatAllowed(result.Format) {
		result.Error = fmt.Errorf("unsupported format: %s", result.Format)
		result.SecurityRisk = "unapproved format"
		return result
	}

	if cfg.Width > v.config.MaxWidth || cfg.Height > v.config.MaxHeight {
		result.Error = fmt.Errorf("dimensions exceed limit: %dx%d (max %dx%d)",
			cfg.Width, cfg.Height, v.config.MaxWidth, v.config.MaxHeight)
		result.SecurityRisk = "dimensions too large"
		return result
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); v.config.MaxPixels > 0 && pixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("pixel count exceeds limit: %d (max %d)", pixels, v.config.MaxPixels)
		result.SecurityRisk = "pixel count too high"
		return result
	}

	if v.config.EnableDeepScan && v.suspicious(raw) {
		result.Error = fmt.Errorf("potential malicious content detected")
		result.SecurityRisk = "malicious content"
		return result
	}

	result.Width = cfg.Width
	result.Height = cfg.Height
	result.IsValid = true
	return result
}

// suspicious flags payloads that carry an executable, archive or script header.
func (v *Validator) suspicious(raw []byte) bool {
	prefixes := [][]byte{
		{0x4D, 0x5A},
		{0x25, 0x50, 0x44, 0x46},
		{0x50, 0x4B, 0x03, 0x04},
		{0x1F, 0x8B, 0x08},
	}
	for _, p := range prefixes {
		if bytes.HasPrefix(raw, p) {
			v.logger.WarnTag("FRAME", "suspicious signature: %x", p)
			return true
		}
	}

	lower := strings.ToLower(string(raw[:min(len(raw), 4096)]))
	for _, token := range []string{"<script", "javascript:", "<svg", "<iframe"} {
		if strings.Contains(lower, token) {
			v.logger.WarnTag("FRAME", "suspicious content token=%s", token)
			return true
		}
	}
	return false
}

// NormalizeFormat lower-cases a format name and folds jpg into jpeg.
func NormalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	format = strings.TrimPrefix(format, "image/")
	if format == "jpg" {
		return "jpeg"
	}
	return format
}

// FormatFromContentType maps an HTTP Content-Type onto a frame format.
func FormatFromContentType(contentType string) string {
	lower := strings.ToLower(contentType)
	switch {
	case strings.Contains(lower, "jpeg"), strings.Contains(lower, "jpg"):
		return "jpeg"
	case strings.Contains(lower, "png"):
		return "png"
	case strings.Contains(lower, "gif"):
		return "gif"
	case strings.Contains(lower, "webp"):
		return "webp"
	default:
		return ""
	}
}
