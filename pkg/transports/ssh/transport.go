// Package ssh provides the SSH transport used to push build output to
// network attached devices and run it there.
package ssh

import (
	"context"
	"fmt"
	"time"
)

// Transport defines the remote operations a device upload needs.
type Transport interface {
	// Connect establishes an SSH connection to the remote host.
	Connect(ctx context.Context) error

	// Disconnect closes the SSH connection and releases all resources.
	Disconnect() error

	// IsConnected returns true if the transport has an active connection.
	IsConnected() bool

	// ExecuteCommand runs a command on the remote host.
	// Returns stdout, stderr, and any error that occurred.
	ExecuteCommand(ctx context.Context, cmd string) (stdout string, stderr string, err error)

	// UploadFile uploads a single file to the remote host via SFTP.
	// The mode parameter sets file permissions (e.g., 0644).
	UploadFile(ctx context.Context, localPath string, remotePath string, mode uint32) error

	// UploadDirectory recursively uploads a directory to the remote host.
	UploadDirectory(ctx context.Context, localPath string, remotePath string) (FileTransferResult, error)
}

// FileTransferResult summarizes an upload.
type FileTransferResult struct {
	// Files is the number of files transferred
	Files int

	// BytesTransferred is the number of bytes transferred
	BytesTransferred int64

	// Duration is the time taken for the transfer
	Duration time.Duration
}

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "exec", "upload")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("ssh %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
