package overlay

// DeepMerge merges src into dst and returns dst. Values from src win at the
// same key path; nested objects are merged recursively and keys present only
// in dst are kept. Arrays and scalars are replaced, not concatenated.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, sv := range src {
		srcObj, srcIsObj := sv.(map[string]any)
		dstObj, dstIsObj := dst[key].(map[string]any)
		if srcIsObj && dstIsObj {
			dst[key] = DeepMerge(dstObj, srcObj)
			continue
		}
		if srcIsObj {
			dst[key] = DeepMerge(nil, srcObj)
			continue
		}
		dst[key] = sv
	}
	return dst
}
