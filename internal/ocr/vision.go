package ocr

import (
	"context"
	"errors"
	"fmt"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"intellidoc-backend/internal/shared/gcp"
)

// Engine recognises the text on one page image.
type Engine interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// VisionEngine runs DOCUMENT_TEXT_DETECTION on Google Cloud Vision.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionEngine dials Cloud Vision with credentials from the environment.
func NewVisionEngine(ctx context.Context) (*VisionEngine, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, gcp.ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionEngine{client: client}, nil
}

func (v *VisionEngine) Recognize(ctx context.Context, png []byte) (string, error) {
	if v == nil || v.client == nil {
		return "", errors.New("vision client not initialized")
	}
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: png},
			Features: []*visionpb.Feature{
				{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
			},
		}},
	}
	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", nil
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}
	return r0.GetFullTextAnnotation().GetText(), nil
}

// Close releases the gRPC connection.
func (v *VisionEngine) Close() error {
	if v == nil || v.client == nil {
		return nil
	}
	return v.client.Close()
}
