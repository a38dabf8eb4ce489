package chroma

import (
	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
)

// row is a single flattened result row, independent of whether it came from
// a Query (which batches results per query embedding) or a Get call.
type row struct {
	id       string
	document string
	distance float64
	metadata map[string]any
}

// rowsOf flattens a Query response's single query-group (this adapter always
// queries with exactly one embedding at a time) into a row slice.
func rowsOf(qr chromago.QueryResult) []row {
	if qr == nil {
		return nil
	}
	ids := qr.GetIDGroups()
	docs := qr.GetDocumentsGroups()
	dists := qr.GetDistancesGroups()
	metas := qr.GetMetadatasGroups()
	if len(ids) == 0 {
		return nil
	}

	n := len(ids[0])
	rows := make([]row, 0, n)
	for i := 0; i < n; i++ {
		r := row{id: string(ids[0][i])}
		if len(docs) > 0 && i < len(docs[0]) {
			r.document = docs[0][i].ContentString()
		}
		if len(dists) > 0 && i < len(dists[0]) {
			r.distance = float64(dists[0][i])
		}
		if len(metas) > 0 && i < len(metas[0]) && metas[0][i] != nil {
			r.metadata = metas[0][i].AsMap()
		}
		rows = append(rows, r)
	}
	return rows
}

// getRowsOf flattens a Get response (unbatched, unlike Query) into a row
// slice. Distance is not meaningful for a direct get-by-id.
func getRowsOf(gr chromago.GetResult) []row {
	if gr == nil {
		return nil
	}
	ids := gr.GetIDs()
	docs := gr.GetDocuments()
	metas := gr.GetMetadatas()

	rows := make([]row, 0, len(ids))
	for i, id := range ids {
		r := row{id: string(id)}
		if i < len(docs) {
			r.document = docs[i].ContentString()
		}
		if i < len(metas) && metas[i] != nil {
			r.metadata = metas[i].AsMap()
		}
		rows = append(rows, r)
	}
	return rows
}
