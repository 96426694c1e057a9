// Package storage uploads signature assets to the remote object-storage/CDN
// provider and recognizes URLs that point back at it.
package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"
)

// domainMarker identifies asset URLs served by the provider.
const domainMarker = "cloudinary.com"

// CloudinaryStore uploads local files and returns their secure CDN URLs.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	logger *zap.Logger
}

// NewCloudinaryStore builds a store from a CLOUDINARY_URL-style connection
// string.
func NewCloudinaryStore(cloudinaryURL string, logger *zap.Logger) (*CloudinaryStore, error) {
	if strings.TrimSpace(cloudinaryURL) == "" {
		return nil, errors.New("cloudinary connection string not set")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return &CloudinaryStore{cld: cld, logger: logger.Named("cloudinary")}, nil
}

// Upload pushes the file at localPath under logicalKey and returns the
// secure URL the asset is served from.
func (s *CloudinaryStore) Upload(ctx context.Context, localPath, logicalKey string) (string, error) {
	resp, err := s.cld.Upload.Upload(ctx, localPath, uploader.UploadParams{PublicID: logicalKey})
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", errors.New(resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", errors.New("upload returned no secure URL")
	}
	s.logger.Info("asset uploaded",
		zap.String("local_path", localPath),
		zap.String("public_id", resp.PublicID),
		zap.String("secure_url", resp.SecureURL))
	return resp.SecureURL, nil
}

// IsRemoteAsset reports whether rawURL points at the storage provider.
// Such references are fetched over HTTP like any other remote source.
func IsRemoteAsset(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(u.Host), domainMarker)
}
