package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for app documents.
//
// Analyzed name and description drive relevance; the folded keyword copies
// back the substring filter; user_id and category_id are exact-match keys.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	text := func(store, vectors bool) *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = en.AnalyzerName
		fm.Store = store
		fm.IncludeTermVectors = vectors
		return fm
	}
	kw := func(store bool) *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = store
		return fm
	}

	docMapping.AddFieldMappingsAt("name", text(true, true))
	docMapping.AddFieldMappingsAt("description", text(true, false))

	docMapping.AddFieldMappingsAt("name_folded", kw(false))
	docMapping.AddFieldMappingsAt("description_folded", kw(false))

	docMapping.AddFieldMappingsAt("id", kw(true))
	docMapping.AddFieldMappingsAt("user_id", kw(true))
	docMapping.AddFieldMappingsAt("category_id", kw(true))
	docMapping.AddFieldMappingsAt("icon", kw(true))
	docMapping.AddFieldMappingsAt("url", kw(true))

	createdAt := bleve.NewNumericFieldMapping()
	createdAt.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAt)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
