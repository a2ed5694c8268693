package dropbox

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/provider"
	"github.com/walteh/drsholding/pkg/remote"
)

func init() {
	provider.RegisterDropbox("local", NewLocal)
}

// 📁 Local drops files into a directory, standing in for the dropbox server in integration runs
type Local struct {
	dir string
}

var _ remote.Dropbox = (*Local)(nil)

func NewLocal(ctx context.Context, args remote.DropboxArgs) (remote.Dropbox, error) {
	if args.Dir == "" {
		return nil, errors.New("dropbox dir is required")
	}
	if err := os.MkdirAll(args.Dir, 0755); err != nil {
		return nil, errors.Errorf("creating dropbox dir: %w", err)
	}
	return &Local{dir: args.Dir}, nil
}

// Put copies localPath under the dropbox dir; remotePath is treated as relative to it
func (l *Local) Put(ctx context.Context, localPath, remotePath string) error {
	dst := filepath.Join(l.dir, filepath.FromSlash(strings.TrimPrefix(remotePath, "/")))
	if !strings.HasPrefix(dst, filepath.Clean(l.dir)+string(filepath.Separator)) {
		return errors.Errorf("remote path %s escapes dropbox dir: %w", remotePath, failure.ErrTransport)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return errors.Errorf("opening %s: %w", localPath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Errorf("creating %s: %w: %w", filepath.Dir(dst), failure.ErrTransport, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return errors.Errorf("creating %s: %w: %w", dst, failure.ErrTransport, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return errors.Errorf("writing %s: %w: %w", dst, failure.ErrTransport, err)
	}
	if err := out.Close(); err != nil {
		return errors.Errorf("closing %s: %w: %w", dst, failure.ErrTransport, err)
	}

	zerolog.Ctx(ctx).Info().Str("local", localPath).Str("remote", dst).Msg("copied file to local dropbox")
	return nil
}

func (l *Local) Target() string {
	return "file://" + l.dir
}

func (l *Local) Close() error {
	return nil
}
