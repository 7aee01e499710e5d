package analysis

import "sort"

// ItemKey identifies a purchased item by material code and description.
type ItemKey struct {
	Material  string `json:"material"`
	ShortText string `json:"short_text"`
}

func (k ItemKey) less(o ItemKey) bool {
	if k.Material != o.Material {
		return k.Material < o.Material
	}
	return k.ShortText < o.ShortText
}

// FragmentationRow is an item bought from more suppliers than the threshold.
type FragmentationRow struct {
	ItemKey
	UniqueSuppliers int `json:"unique_suppliers"`
}

// AnalyzeFragmentation counts distinct non-empty suppliers per item and
// keeps items with more than minSuppliers. Sorted by supplier count desc.
func AnalyzeFragmentation(recs []Record, minSuppliers int) []FragmentationRow {
	seen := map[ItemKey]map[string]struct{}{}
	for _, r := range recs {
		k := ItemKey{Material: r.Material, ShortText: r.ShortText}
		s, ok := seen[k]
		if !ok {
			s = map[string]struct{}{}
			seen[k] = s
		}
		if r.Supplier != "" {
			s[r.Supplier] = struct{}{}
		}
	}
	out := make([]FragmentationRow, 0)
	for k, s := range seen {
		if len(s) > minSuppliers {
			out = append(out, FragmentationRow{ItemKey: k, UniqueSuppliers: len(s)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UniqueSuppliers != out[j].UniqueSuppliers {
			return out[i].UniqueSuppliers > out[j].UniqueSuppliers
		}
		return out[i].less(out[j].ItemKey)
	})
	return out
}
