package domain

import (
	"errors"
	"strconv"
	"strings"
)

// UnknownCompany marks chunks whose owning company could not be resolved at ingestion.
const UnknownCompany = "Unknown"

const (
	MetaSource      = "source"
	MetaFilename    = "filename"
	MetaPageIndex   = "page_index"
	MetaCompanyName = "company_name"
)

// Chunk is the unit of retrieval: a segment of one page of a source PDF.
type Chunk struct {
	Content        string            `json:"content"`
	SourceFilename string            `json:"source_filename"`
	PageIndex      int               `json:"page_index"`
	CompanyName    string            `json:"company_name"`
	Metadata       map[string]string `json:"metadata"`
}

// NewChunk builds a chunk with the mandatory metadata keys populated.
// Extra metadata is copied; mandatory keys always win.
func NewChunk(content, source string, pageIndex int, company string, extra map[string]string) Chunk {
	company = strings.TrimSpace(company)
	if company == "" {
		company = UnknownCompany
	}
	meta := make(map[string]string, len(extra)+4)
	for k, v := range extra {
		meta[k] = v
	}
	meta[MetaSource] = source
	meta[MetaFilename] = source
	meta[MetaPageIndex] = strconv.Itoa(pageIndex)
	meta[MetaCompanyName] = company

	return Chunk{
		Content:        content,
		SourceFilename: source,
		PageIndex:      pageIndex,
		CompanyName:    company,
		Metadata:       meta,
	}
}

// Key identifies a chunk by source, page and content.
func (c Chunk) Key() string {
	return c.SourceFilename + "\x00" + strconv.Itoa(c.PageIndex) + "\x00" + c.Content
}

func (c Chunk) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return WrapError(ErrInvalidInput, "validate chunk", errors.New("empty content"))
	}
	if strings.TrimSpace(c.SourceFilename) == "" {
		return WrapError(ErrInvalidInput, "validate chunk", errors.New("empty source filename"))
	}
	if c.PageIndex < 0 {
		return WrapError(ErrInvalidInput, "validate chunk", errors.New("negative page index"))
	}
	return nil
}

// HasKnownCompany reports whether the chunk is attributed to a resolved company.
func (c Chunk) HasKnownCompany() bool {
	name := strings.TrimSpace(c.CompanyName)
	return name != "" && name != UnknownCompany
}
