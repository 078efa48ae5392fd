package client

import (
	"io"
)

// ProgressFunc is called with count of bytes sent and total size; total is 0 when unknown.
type ProgressFunc func(sent, total int64)

// Percent returns progress in [0, 100].
func Percent(sent, total int64) int {
	if total <= 0 {
		return 0
	}

	if sent >= total {
		return 100
	}

	return int(sent * 100 / total)
}

type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	f     ProgressFunc
}

func newProgressReader(r io.Reader, total int64, f ProgressFunc) io.Reader {
	if f == nil {
		return r
	}

	return &progressReader{r: r, total: total, f: f}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.f(p.sent, p.total)
	}

	return n, err
}
