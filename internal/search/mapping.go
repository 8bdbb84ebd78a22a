package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// mappingVersion is bumped whenever buildIndexMapping changes. A mismatch
// on startup recreates the index.
const mappingVersion = "1"

// buildIndexMapping creates the mapping shared by user and post documents:
//
//	username  simple analyzer, so handles match without stemming
//	fullname  standard analyzer
//	caption   English analyzer with stemming
//	type, id, user_id  keyword
//	created_at  numeric
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	doc := bleve.NewDocumentMapping()

	username := bleve.NewTextFieldMapping()
	username.Analyzer = simple.Name
	username.Store = true
	doc.AddFieldMappingsAt("username", username)

	fullname := bleve.NewTextFieldMapping()
	fullname.Analyzer = standard.Name
	fullname.Store = true
	doc.AddFieldMappingsAt("fullname", fullname)

	caption := bleve.NewTextFieldMapping()
	caption.Analyzer = en.AnalyzerName
	caption.Store = false
	caption.IncludeTermVectors = true
	doc.AddFieldMappingsAt("caption", caption)

	for _, field := range []string{"id", "type", "user_id"} {
		kw := bleve.NewTextFieldMapping()
		kw.Analyzer = keyword.Name
		kw.Store = field == "type"
		doc.AddFieldMappingsAt(field, kw)
	}

	createdAt := bleve.NewNumericFieldMapping()
	createdAt.Store = true
	doc.AddFieldMappingsAt("created_at", createdAt)

	indexMapping.AddDocumentMapping("_default", doc)
	return indexMapping
}
