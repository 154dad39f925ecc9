package objectclient

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/silverrag/internal/config"
	"github.com/markdave123-py/silverrag/internal/core"
)

// NewObjectClient builds the storage backend selected by STORAGE_BACKEND and
// makes sure its bucket exists.
func NewObjectClient(ctx context.Context, cfg *config.Config) (core.ObjectClient, error) {
	switch cfg.StorageBackend {
	case config.StorageGCS:
		return NewGCSClient(ctx, cfg)
	case config.StorageS3, "":
		return NewS3Client(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// newObjectKey returns a fresh storage id and the object key <id>/<name>.
func newObjectKey(name string) (id, key string) {
	id = uuid.NewString()
	return id, id + "/" + cleanName(name)
}

// cleanName strips any directory components so a key never escapes its prefix.
func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

func prefixOf(id string) (string, error) {
	id = strings.Trim(strings.TrimSpace(id), "/")
	if id == "" || strings.Contains(id, "/") {
		return "", core.Errorf(core.KindValidation, "storage", "invalid storage id %q", id)
	}
	return id + "/", nil
}

func nameFromKey(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

func notFound(op, id string) error {
	return &core.Error{Kind: core.KindNotFound, Op: op, Message: fmt.Sprintf("no object stored under %s", id)}
}
