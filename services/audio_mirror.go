package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryMirror copies stored audio artifacts to Cloudinary.
type CloudinaryMirror struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryMirror(cloudinaryURL, folder string) (*CloudinaryMirror, error) {
	if cloudinaryURL == "" {
		return nil, errors.New("cloudinary url is required")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryMirror{cld: cld, folder: folder}, nil
}

func (m *CloudinaryMirror) Mirror(ctx context.Context, name string, data []byte) error {
	// Cloudinary files audio under the "video" resource type.
	uploadResult, err := m.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     mirrorPublicID(name),
		Folder:       m.folder,
		ResourceType: "video",
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return err
	}
	if uploadResult.Error.Message != "" {
		return errors.New(uploadResult.Error.Message)
	}
	return nil
}

func mirrorPublicID(name string) string {
	return "quiz_" + strings.TrimSuffix(name, filepath.Ext(name))
}
