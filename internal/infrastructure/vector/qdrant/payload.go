package qdrant

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

const (
	payloadContent    = "content"
	payloadCompanyKey = "company_key"
)

// chunkPayload flattens a chunk into point payload. Page index is stored as a
// number so it can be range-filtered; company_key is the lowercased company
// name that search filters on.
func chunkPayload(chunk domain.Chunk) map[string]any {
	payload := make(map[string]any, len(chunk.Metadata)+4)
	for k, v := range chunk.Metadata {
		payload[k] = v
	}
	payload[payloadContent] = chunk.Content
	payload[domain.MetaSource] = chunk.SourceFilename
	payload[domain.MetaPageIndex] = chunk.PageIndex
	payload[domain.MetaCompanyName] = chunk.CompanyName
	payload[payloadCompanyKey] = domain.CompanyKey(chunk.CompanyName)
	return payload
}

func payloadChunk(payload map[string]any) domain.Chunk {
	fields := make(map[string]string, len(payload))
	for k, v := range payload {
		fields[k] = payloadString(v)
	}
	content := fields[payloadContent]
	page, _ := strconv.Atoi(fields[domain.MetaPageIndex])

	extra := maps.Clone(fields)
	delete(extra, payloadContent)
	delete(extra, payloadCompanyKey)
	return domain.NewChunk(content, fields[domain.MetaSource], page, fields[domain.MetaCompanyName], extra)
}

func payloadString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
