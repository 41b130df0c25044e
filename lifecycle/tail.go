package lifecycle

import (
	"io"
	"os"

	"github.com/teranos/dawn/internal/util"
)

// tailWindow bounds how much of a log is read to find its last lines
const tailWindow = 64 * 1024

// TailFile returns the last n lines of the file at path.
// A missing file yields no lines and no error.
func TailFile(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	offset := info.Size() - tailWindow
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	lines := util.LastLines(string(data), n+1)
	// Drop a partial first line when the window started mid-file
	if offset > 0 && len(lines) > n {
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
