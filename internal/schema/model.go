// Package schema defines the fixed output row written by the extractor.
package schema

// Column names in output order. The order is part of the output contract.
const (
	Image               = "image"
	ImageID             = "image_id"
	Question1           = "question_1"
	Answer1             = "answer_1"
	Question2           = "question_2"
	Answer2             = "answer_2"
	ImagePrimaryLabel   = "image_primary_label"
	ImageSecondaryLabel = "image_secondary_label"
	Caption             = "caption"
	InlineMentions      = "inline_mentions"
	ImageSize           = "image_size"
	ArticleLicense      = "article_license"
	ArticleTitle        = "article_title"
	ArticleCitation     = "article_citation"
	ArticleJournal      = "article_journal"
)

// NumColumns is the number of fields in every Row.
const NumColumns = 15

var columns = [NumColumns]string{
	Image,
	ImageID,
	Question1,
	Answer1,
	Question2,
	Answer2,
	ImagePrimaryLabel,
	ImageSecondaryLabel,
	Caption,
	InlineMentions,
	ImageSize,
	ArticleLicense,
	ArticleTitle,
	ArticleCitation,
	ArticleJournal,
}

var positions = func() map[string]int {
	m := make(map[string]int, NumColumns)
	for i, c := range columns {
		m[c] = i
	}
	return m
}()

// Columns returns a copy of the header in output order.
func Columns() []string {
	out := make([]string, NumColumns)
	copy(out, columns[:])
	return out
}

// Position returns the index of column name and whether it is part of the
// schema.
func Position(name string) (int, bool) {
	i, ok := positions[name]
	return i, ok
}

// Row is one normalized output row. The zero Row has every field set to the
// empty string, which is also the sentinel for missing source values.
type Row [NumColumns]string

// Set stores v under column name. Unknown names are ignored.
func (r *Row) Set(name, v string) {
	if i, ok := positions[name]; ok {
		r[i] = v
	}
}

// Get returns the value of column name, or "" for unknown names.
func (r Row) Get(name string) string {
	if i, ok := positions[name]; ok {
		return r[i]
	}
	return ""
}

// Strings returns the row as a slice in column order.
func (r Row) Strings() []string {
	out := make([]string, NumColumns)
	copy(out, r[:])
	return out
}
