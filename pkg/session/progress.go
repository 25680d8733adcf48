package session

import "io"

// progressReader wraps an io.Reader to report every chunk read
type progressReader struct {
	r       io.Reader
	onBytes func(n int64)
}

func withProgress(r io.Reader, onBytes func(n int64)) io.Reader {
	if onBytes == nil {
		return r
	}
	return &progressReader{r: r, onBytes: onBytes}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.onBytes(int64(n))
	}
	return n, err
}
