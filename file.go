package russh

import "io"

// File is a thin handle over one open remote file descriptor. It does no
// internal buffering or caching; every call goes to the remote side.
type File struct {
	fd sftpFile
}

// Read drains the file to end-of-file from the current position and returns
// the content. A second call therefore returns "".
func (f *File) Read() (string, error) {
	const op = "read"
	if f.fd == nil {
		return "", errNotOpen(op, "remote file")
	}
	data, err := io.ReadAll(f.fd)
	if err != nil {
		return string(data), translateSftpErr(op, err)
	}
	return string(data), nil
}

// Write writes data to the file at the current position.
func (f *File) Write(data []byte) error {
	const op = "write"
	if f.fd == nil {
		return errNotOpen(op, "remote file")
	}
	if _, err := f.fd.Write(data); err != nil {
		return translateSftpErr(op, err)
	}
	return nil
}

// Close releases the remote descriptor. It is idempotent.
func (f *File) Close() error {
	if f.fd == nil {
		return nil
	}
	fd := f.fd
	f.fd = nil

	if err := fd.Close(); err != nil {
		return translateSftpErr("close", err)
	}
	return nil
}
