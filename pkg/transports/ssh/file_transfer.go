package ssh

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
)

// UploadFile uploads a single file to the remote host via SFTP.
func (c *SSHClient) UploadFile(ctx context.Context, localPath string, remotePath string, mode uint32) error {
	sftpClient, err := c.createSFTPClient()
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	_, err = uploadFile(ctx, sftpClient, localPath, remotePath, mode)
	return err
}

// UploadDirectory recursively uploads a directory to the remote host.
func (c *SSHClient) UploadDirectory(ctx context.Context, localPath string, remotePath string) (FileTransferResult, error) {
	var result FileTransferResult
	startTime := time.Now()

	log.Debug().
		Str("local", localPath).
		Str("remote", remotePath).
		Msg("uploading directory")

	sftpClient, err := c.createSFTPClient()
	if err != nil {
		return result, err
	}
	defer sftpClient.Close()

	err = filepath.Walk(localPath, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(localPath, p)
		if err != nil {
			return err
		}
		// Remote hosts are POSIX regardless of the local OS.
		targetPath := path.Join(remotePath, filepath.ToSlash(relPath))

		if info.IsDir() {
			if err := sftpClient.MkdirAll(targetPath); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", targetPath, err)
			}
			return nil
		}

		n, err := uploadFile(ctx, sftpClient, p, targetPath, uint32(info.Mode().Perm()))
		if err != nil {
			return fmt.Errorf("failed to upload file %s: %w", p, err)
		}
		result.Files++
		result.BytesTransferred += n
		return nil
	})
	result.Duration = time.Since(startTime)
	if err != nil {
		return result, &TransportError{Op: "upload-dir", Err: err}
	}

	log.Info().
		Str("remote", remotePath).
		Int("files", result.Files).
		Int64("bytes", result.BytesTransferred).
		Dur("duration", result.Duration).
		Msg("directory uploaded")

	return result, nil
}

func (c *SSHClient) createSFTPClient() (*sftp.Client, error) {
	sshClient, err := c.getClient()
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, &TransportError{
			Op:          "sftp-init",
			Err:         fmt.Errorf("failed to create SFTP client: %w", err),
			IsTemporary: true,
		}
	}

	return sftpClient, nil
}

func uploadFile(ctx context.Context, sftpClient *sftp.Client, localPath string, remotePath string, mode uint32) (int64, error) {
	localFile, err := os.Open(localPath)
	if err != nil {
		return 0, &TransportError{
			Op:  "upload",
			Err: fmt.Errorf("failed to open local file: %w", err),
		}
	}
	defer localFile.Close()

	if err := sftpClient.MkdirAll(path.Dir(remotePath)); err != nil {
		return 0, &TransportError{
			Op:  "upload",
			Err: fmt.Errorf("failed to create remote directory: %w", err),
		}
	}

	remoteFile, err := sftpClient.Create(remotePath)
	if err != nil {
		return 0, &TransportError{
			Op:          "upload",
			Err:         fmt.Errorf("failed to create remote file: %w", err),
			IsTemporary: true,
		}
	}
	defer remoteFile.Close()

	written, err := copyWithContext(ctx, remoteFile, localFile)
	if err != nil {
		return written, &TransportError{
			Op:          "upload",
			Err:         fmt.Errorf("failed to copy file: %w", err),
			IsTemporary: true,
		}
	}

	if mode > 0 {
		if err := sftpClient.Chmod(remotePath, os.FileMode(mode)); err != nil {
			log.Warn().Err(err).Msg("failed to set file permissions")
		}
	}

	log.Debug().
		Str("local", localPath).
		Str("remote", remotePath).
		Int64("bytes", written).
		Msg("file uploaded")

	return written, nil
}

// copyWithContext copies data from src to dst while respecting context cancellation.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[0:nr])
			if nw > 0 {
				written += int64(nw)
			}
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return written, err
		}
	}

	return written, nil
}
