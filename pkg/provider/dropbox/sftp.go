// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dropbox

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/provider"
	"github.com/walteh/drsholding/pkg/remote"
)

const dialTimeout = 30 * time.Second

func init() {
	provider.RegisterDropbox("sftp", NewSFTP)
}

// 📦 SFTP puts files on the dropbox server over ssh
type SFTP struct {
	server string
	user   string
	ssh    *ssh.Client
	client *sftp.Client
}

var _ remote.Dropbox = (*SFTP)(nil)

// 🏭 NewSFTP dials the dropbox server with key authentication
func NewSFTP(ctx context.Context, args remote.DropboxArgs) (remote.Dropbox, error) {
	if args.Server == "" {
		return nil, errors.New("dropbox server is required")
	}
	if args.User == "" {
		return nil, errors.New("dropbox user is required")
	}
	if args.PrivateKeyPath == "" {
		return nil, errors.New("private key path is required")
	}

	key, err := os.ReadFile(args.PrivateKeyPath)
	if err != nil {
		return nil, errors.Errorf("reading private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, errors.Errorf("parsing private key: %w", err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if args.KnownHostsPath != "" {
		hostKeyCallback, err = knownhosts.New(args.KnownHostsPath)
		if err != nil {
			return nil, errors.Errorf("loading known hosts: %w", err)
		}
	} else {
		zerolog.Ctx(ctx).Warn().Str("server", args.Server).Msg("no known hosts file configured, host key not verified")
	}

	addr := args.Server
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	conn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            args.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         dialTimeout,
	})
	if err != nil {
		return nil, errors.Errorf("connecting to %s: %w: %w", addr, failure.ErrTransport, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, errors.Errorf("starting sftp session on %s: %w: %w", addr, failure.ErrTransport, err)
	}

	zerolog.Ctx(ctx).Debug().Str("server", addr).Str("user", args.User).Msg("connected to dropbox")

	return &SFTP{server: addr, user: args.User, ssh: conn, client: client}, nil
}

// Put uploads localPath to remotePath, creating the remote directory if needed
func (s *SFTP) Put(ctx context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return errors.Errorf("opening %s: %w", localPath, err)
	}
	defer src.Close()

	if err := s.client.MkdirAll(path.Dir(remotePath)); err != nil {
		return errors.Errorf("creating %s on %s: %w: %w", path.Dir(remotePath), s.server, failure.ErrTransport, err)
	}

	dst, err := s.client.Create(remotePath)
	if err != nil {
		return errors.Errorf("creating %s on %s: %w: %w", remotePath, s.server, failure.ErrTransport, err)
	}

	n, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		return errors.Errorf("writing %s on %s: %w: %w", remotePath, s.server, failure.ErrTransport, err)
	}
	if err := dst.Close(); err != nil {
		return errors.Errorf("closing %s on %s: %w: %w", remotePath, s.server, failure.ErrTransport, err)
	}

	zerolog.Ctx(ctx).Info().Str("local", localPath).Str("remote", remotePath).Int64("bytes", n).Msg("transferred file to dropbox")
	return nil
}

func (s *SFTP) Target() string {
	return "sftp://" + s.user + "@" + s.server
}

func (s *SFTP) Close() error {
	var errs []error
	if err := s.client.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.ssh.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Errorf("closing dropbox connection: %w", errors.Join(errs...))
	}
	return nil
}
