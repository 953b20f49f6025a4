package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for chunk text documents.
// Recognized text gets English stemming and term vectors for highlighting;
// the identifying fields are exact-match keywords used for filtering.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = en.AnalyzerName
	textFieldMapping.Store = true
	textFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	asinFieldMapping := bleve.NewTextFieldMapping()
	asinFieldMapping.Analyzer = keyword.Name
	asinFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("asin", asinFieldMapping)

	chunkFieldMapping := bleve.NewTextFieldMapping()
	chunkFieldMapping.Analyzer = keyword.Name
	chunkFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("chunk_id", chunkFieldMapping)

	providerFieldMapping := bleve.NewTextFieldMapping()
	providerFieldMapping.Analyzer = keyword.Name
	providerFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("provider", providerFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
