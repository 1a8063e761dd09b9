package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps images in a MongoDB GridFS bucket. References have the
// form <publicPath>/<object id hex> and are served by the image handler.
type GridFSStore struct {
	bucket     *gridfs.Bucket
	publicPath string
}

func NewGridFSStore(db *mongo.Database, bucketName, publicPath string) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket %q: %w", bucketName, err)
	}
	return &GridFSStore{bucket: bucket, publicPath: strings.TrimRight(publicPath, "/")}, nil
}

func (s *GridFSStore) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	stream, err := s.bucket.OpenUploadStream(name, opts)
	if err != nil {
		return "", fmt.Errorf("open upload stream: %w", err)
	}
	if _, err := io.Copy(stream, r); err != nil {
		stream.Abort()
		return "", fmt.Errorf("upload image: %w", err)
	}
	if err := stream.Close(); err != nil {
		return "", fmt.Errorf("finish upload: %w", err)
	}
	id, ok := stream.FileID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected gridfs file id %T", stream.FileID)
	}
	return path.Join(s.publicPath, id.Hex()), nil
}

func (s *GridFSStore) Delete(_ context.Context, ref string) error {
	id, err := s.objectID(path.Base(ref))
	if err != nil {
		return err
	}
	if err := s.bucket.Delete(id); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// Open returns a reader over the stored image and its content type.
func (s *GridFSStore) Open(_ context.Context, hexID string) (io.ReadCloser, string, error) {
	id, err := s.objectID(hexID)
	if err != nil {
		return nil, "", err
	}
	stream, err := s.bucket.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("open image: %w", err)
	}

	contentType := "application/octet-stream"
	if file := stream.GetFile(); file != nil && file.Metadata != nil {
		if v, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok && v != "" {
			contentType = v
		}
	}
	return stream, contentType, nil
}

func (s *GridFSStore) objectID(hexID string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return id, nil
}
