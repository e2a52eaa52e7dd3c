// Package static serves files from a directory, an fs.FS or an S3 bucket
// as tern handlers.
//
//	app.Static("/assets", static.Dir("./public"))
//
//	client := s3.NewFromConfig(awsCfg)
//	app.Static("/media", static.S3(client, "my-bucket", "media/"))
package static

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"
)

// ErrNotFound is returned by a Source for missing objects.
var ErrNotFound = errors.New("static: not found")

// Object is an opened file.
type Object struct {
	Body io.ReadCloser

	// Size is -1 when unknown.
	Size        int64
	ContentType string
	ModTime     time.Time
	ETag        string
}

// Source opens objects by slash-separated relative name.
type Source interface {
	Open(ctx context.Context, name string) (*Object, error)
}

// Dir serves the directory root from disk.
func Dir(root string) Source {
	return FS(os.DirFS(root))
}

// FS serves files from fsys.
func FS(fsys fs.FS) Source {
	return fsSource{fsys: fsys}
}

type fsSource struct {
	fsys fs.FS
}

func (s fsSource) Open(_ context.Context, name string) (*Object, error) {
	f, err := s.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}

	return &Object{
		Body:    f,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
