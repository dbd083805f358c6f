package parbatch

import (
	"reflect"
)

//normalizeItems accept any slice or array as the ordered input collection
func normalizeItems(items interface{}) ([]interface{}, bool) {
	switch it := items.(type) {
	case nil:
		return nil, false
	case []interface{}:
		return it, true
	}
	v := reflect.ValueOf(items)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = v.Index(i).Interface()
	}
	return out, true
}

//planChunks split items into count contiguous chunks covering [0,len(items))
//exactly. Sizes are balanced, the first len(items)%count chunks carry one
//extra item. count is capped at the item count, zero items plan zero chunks.
func planChunks(items []interface{}, count int) []Chunk {
	n := len(items)
	if n == 0 {
		return nil
	}
	if count > n {
		count = n
	}
	if count < 1 {
		count = 1
	}
	base := n / count
	rem := n % count
	chunks := make([]Chunk, 0, count)
	start := 0
	for i := 0; i < count; i++ {
		size := base
		if i < rem {
			size++
		}
		end := start + size
		chunks = append(chunks, Chunk{
			Range: IndexRange{Start: start, End: end},
			Items: items[start:end],
		})
		start = end
	}
	return chunks
}
