package schema

import "reflect"

// MergeMaps recursively merges two metadata maps. Keys present on one side
// only are taken as-is. When both sides are maps the merge recurses; when
// both sides are slices of the same element type they are concatenated, left
// first; in every other conflict the left side wins.
//
// The slice rule is what gives "locations" its union semantics: merging two
// passages concatenates their location lists.
func MergeMaps(d1, d2 map[string]any) map[string]any {
	merged := make(map[string]any, len(d1)+len(d2))
	for key, v1 := range d1 {
		if v2, ok := d2[key]; ok {
			merged[key] = mergeValues(v1, v2)
		} else {
			merged[key] = v1
		}
	}
	for key, v2 := range d2 {
		if _, ok := d1[key]; !ok {
			merged[key] = v2
		}
	}
	return merged
}

func mergeValues(v1, v2 any) any {
	if m1, ok := v1.(map[string]any); ok {
		if m2, ok := v2.(map[string]any); ok {
			return MergeMaps(m1, m2)
		}
	}
	r1 := reflect.ValueOf(v1)
	r2 := reflect.ValueOf(v2)
	if r1.Kind() == reflect.Slice && r2.Kind() == reflect.Slice && r1.Type() == r2.Type() {
		out := reflect.MakeSlice(r1.Type(), 0, r1.Len()+r2.Len())
		out = reflect.AppendSlice(out, r1)
		out = reflect.AppendSlice(out, r2)
		return out.Interface()
	}
	return v1
}

// MergePassages folds passages with the same ID into one record, preserving
// first-seen order across all input lists. The first passage of a group
// keeps its content and embedding; the metadata of later members is merged
// in with MergeMaps, so location lists concatenate in input order.
func MergePassages(lists ...[]Passage) []Passage {
	var order []string
	groups := make(map[string][]Passage)
	for _, list := range lists {
		for _, p := range list {
			if _, ok := groups[p.ID]; !ok {
				order = append(order, p.ID)
			}
			groups[p.ID] = append(groups[p.ID], p)
		}
	}

	merged := make([]Passage, 0, len(order))
	for _, id := range order {
		group := groups[id]
		head := group[0]
		for _, other := range group[1:] {
			head.Meta = MergeMaps(head.Meta, other.Meta)
		}
		merged = append(merged, head)
	}
	return merged
}
