package checkpoint

import (
	"fmt"
	"github.com/jlaffaye/ftp"
	"io"
	"net/textproto"
	"os"
	"path/filepath"
	"time"
)

//FileStorage abstract access to checkpoint files. Rename must replace an
//existing destination so records can be swapped in atomically.
type FileStorage interface {
	Exists(fileName string) (bool, error)
	Open(fileName string) (io.ReadCloser, error)
	Create(fileName string) (io.WriteCloser, error)
	Rename(oldName, newName string) error
	Remove(fileName string) error
}

type LocalFileSystem struct {
}

func (fs *LocalFileSystem) Exists(fileName string) (bool, error) {
	_, err := os.Stat(fileName)
	if err != nil && os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (fs *LocalFileSystem) Open(fileName string) (io.ReadCloser, error) {
	file, err := os.Open(fileName)
	return file, err
}

func (fs *LocalFileSystem) Create(fileName string) (io.WriteCloser, error) {
	if dir := filepath.Dir(fileName); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.Create(fileName)
}

func (fs *LocalFileSystem) Rename(oldName, newName string) error {
	return os.Rename(oldName, newName)
}

func (fs *LocalFileSystem) Remove(fileName string) error {
	return os.Remove(fileName)
}

type FTPFileSystem struct {
	Host        string
	Port        int
	User        string
	Password    string
	ConnTimeout time.Duration
}

func (fs *FTPFileSystem) connect() (*ftp.ServerConn, error) {
	c, err := ftp.DialTimeout(fmt.Sprintf("%s:%d", fs.Host, fs.Port), fs.ConnTimeout)
	if err != nil {
		return nil, err
	}

	err = c.Login(fs.User, fs.Password)
	if err != nil {
		c.Quit()
		return nil, err
	}
	return c, nil
}

func (fs *FTPFileSystem) Exists(fileName string) (bool, error) {
	c, err := fs.connect()
	if err != nil {
		return false, err
	}
	defer c.Quit()

	_, err = c.FileSize(fileName)
	if err == nil {
		return true, nil
	}
	if e, ok := err.(*textproto.Error); ok && e.Code == ftp.StatusFileUnavailable {
		return false, nil
	}

	return false, err
}

func (fs *FTPFileSystem) Open(fileName string) (io.ReadCloser, error) {
	c, err := fs.connect()
	if err != nil {
		return nil, err
	}

	r, err := c.Retr(fileName)
	if err != nil {
		c.Quit()
		return nil, err
	}
	return &ftpReader{r: r, conn: c}, nil
}

//Create upload through a pipe. The transfer runs concurrently, Close flushes
//the pipe and reports the final transfer status.
func (fs *FTPFileSystem) Create(fileName string) (io.WriteCloser, error) {
	c, err := fs.connect()
	if err != nil {
		return nil, err
	}
	r, w := io.Pipe()
	done := make(chan error, 1)
	go func() {
		storErr := c.Stor(fileName, r)
		r.CloseWithError(storErr)
		c.Quit()
		done <- storErr
	}()
	return &ftpWriter{w: w, done: done}, nil
}

func (fs *FTPFileSystem) Rename(oldName, newName string) error {
	c, err := fs.connect()
	if err != nil {
		return err
	}
	defer c.Quit()
	return c.Rename(oldName, newName)
}

func (fs *FTPFileSystem) Remove(fileName string) error {
	c, err := fs.connect()
	if err != nil {
		return err
	}
	defer c.Quit()
	return c.Delete(fileName)
}

type ftpReader struct {
	r    io.ReadCloser
	conn *ftp.ServerConn
}

func (f *ftpReader) Read(p []byte) (int, error) {
	return f.r.Read(p)
}

func (f *ftpReader) Close() error {
	err := f.r.Close()
	f.conn.Quit()
	return err
}

type ftpWriter struct {
	w    *io.PipeWriter
	done chan error
}

func (f *ftpWriter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f *ftpWriter) Close() error {
	f.w.Close()
	return <-f.done
}
