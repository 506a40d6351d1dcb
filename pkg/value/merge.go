// SPDX-License-Identifier: MPL-2.0

package value

// SoftMerge deep-merges over onto base and returns the result. When both
// sides are maps the merge recurses key by key: keys already in base keep
// their position and new keys from over are appended. Any other combination
// resolves to a copy of over, so scalars and lists overwrite.
//
// Neither argument is modified.
func SoftMerge(base, over Value) Value {
	if base.kind != KindMap || over.kind != KindMap {
		return over.Clone()
	}
	return FromMap(SoftMergeMaps(base.m, over.m))
}

// SoftMergeMaps is SoftMerge for two maps.
func SoftMergeMaps(base, over *Map) *Map {
	out := base.Clone()
	if out == nil {
		out = NewMap()
	}
	for k, ov := range over.All() {
		if bv, ok := out.Get(k); ok {
			out.Set(k, SoftMerge(bv, ov))
			continue
		}
		out.Set(k, ov.Clone())
	}
	return out
}
