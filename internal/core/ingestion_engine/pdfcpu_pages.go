package ingestion_engine

import (
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pageSource reads page counts and writes page ranges. Pages are 1-based and
// ranges inclusive.
type pageSource interface {
	PageCount(path string) (int, error)
	ExtractPages(src, dst string, first, last int) error
}

var disableConfigDir sync.Once

// pdfcpuPages implements pageSource with pdfcpu in relaxed validation mode.
type pdfcpuPages struct {
	conf *model.Configuration
}

func newPdfcpuPages() *pdfcpuPages {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &pdfcpuPages{conf: conf}
}

func (p *pdfcpuPages) PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

func (p *pdfcpuPages) ExtractPages(src, dst string, first, last int) error {
	selection := fmt.Sprintf("%d-%d", first, last)
	if first == last {
		selection = fmt.Sprintf("%d", first)
	}
	return api.TrimFile(src, dst, []string{selection}, p.conf)
}
