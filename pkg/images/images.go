// Package images generates one image per prompt with the Gemini/Imagen API
// and validates the bytes it returns.
package images

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/JaimeStill/muse/pkg/formatting"
)

var supportedTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// SupportedTypes lists the accepted image content types.
func SupportedTypes() []string {
	return slices.Clone(supportedTypes)
}

// Image is a generated image in memory.
type Image struct {
	Data        []byte
	ContentType string
}

// Extension maps a supported image content type to its file extension, with
// the leading dot. Anything else is treated as PNG.
func Extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// Model is the subset of the genai Models service used here.
type Model interface {
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// System generates images from text prompts.
type System interface {
	Generate(ctx context.Context, prompt string) (*Image, error)
	// Model names the configured image model.
	Model() string
}

type generator struct {
	model   Model
	cfg     Config
	maxSize int64
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a genai client for the configured backend.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (System, error) {
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.Backend == BackendVertex {
		cc = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  cfg.Project,
			Location: cfg.Location,
		}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewWithModel(client.Models, cfg, logger), nil
}

// NewWithModel builds a System over an existing Model implementation.
func NewWithModel(model Model, cfg *Config, logger *slog.Logger) System {
	return &generator{
		model:   model,
		cfg:     *cfg,
		maxSize: cfg.MaxSizeBytes(),
		timeout: cfg.TimeoutDuration(),
		logger:  logger.With("system", "images"),
	}
}

func (g *generator) Model() string {
	return g.cfg.Model
}

func (g *generator) Generate(ctx context.Context, prompt string) (*Image, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.model.GenerateImages(ctx, g.cfg.Model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages:   1,
		AspectRatio:      g.cfg.AspectRatio,
		OutputMIMEType:   g.cfg.OutputMIMEType,
		NegativePrompt:   g.cfg.NegativePrompt,
		IncludeRAIReason: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerate, err)
	}

	img, err := firstImage(resp)
	if err != nil {
		return nil, err
	}

	if err := g.validate(img); err != nil {
		return nil, err
	}

	g.logger.DebugContext(ctx, "image generated", "content_type", img.ContentType, "bytes", len(img.Data))
	return img, nil
}

func firstImage(resp *genai.GenerateImagesResponse) (*Image, error) {
	if resp == nil {
		return nil, ErrEmptyResponse
	}

	var filtered []string
	for _, gi := range resp.GeneratedImages {
		if gi == nil {
			continue
		}
		if gi.Image != nil && len(gi.Image.ImageBytes) > 0 {
			return &Image{Data: gi.Image.ImageBytes, ContentType: gi.Image.MIMEType}, nil
		}
		if gi.RAIFilteredReason != "" {
			filtered = append(filtered, gi.RAIFilteredReason)
		}
	}

	if len(filtered) > 0 {
		return nil, fmt.Errorf("%w: filtered: %s", ErrEmptyResponse, strings.Join(filtered, "; "))
	}
	return nil, ErrEmptyResponse
}

// validate settles the content type from the bytes themselves and enforces
// the size cap. A declared type that disagrees with the sniffed type loses.
func (g *generator) validate(img *Image) error {
	if g.maxSize > 0 && int64(len(img.Data)) > g.maxSize {
		return fmt.Errorf("%w: %s, limit %s", ErrTooLarge,
			formatting.FormatBytes(int64(len(img.Data)), 1),
			formatting.FormatBytes(g.maxSize, 1),
		)
	}

	sniffed := http.DetectContentType(img.Data)
	if !slices.Contains(supportedTypes, sniffed) {
		return fmt.Errorf("%w: %s", ErrUnsupportedImage, sniffed)
	}
	img.ContentType = sniffed
	return nil
}
