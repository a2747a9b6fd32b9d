package docstore

// Update describes modifications applied atomically to a single document.
// A field must not appear in more than one operator.
type Update struct {
	Set      Document
	Unset    []string
	Inc      map[string]int64
	Push     map[string]any
	Prepend  map[string]any
	AddToSet map[string]any
	Pull     map[string]any
}

// Empty reports whether the update has no operations.
func (u Update) Empty() bool {
	return len(u.Set) == 0 && len(u.Unset) == 0 && len(u.Inc) == 0 && len(u.Push) == 0 &&
		len(u.Prepend) == 0 && len(u.AddToSet) == 0 && len(u.Pull) == 0
}

// Apply mutates d according to u.
func (u Update) Apply(d Document) {
	for path, v := range u.Set {
		Set(d, path, Normalize(v))
	}
	for _, path := range u.Unset {
		Unset(d, path)
	}
	for path, n := range u.Inc {
		cur, _ := Get(d, path)
		switch val := cur.(type) {
		case int64:
			Set(d, path, val+n)
		case float64:
			Set(d, path, val+float64(n))
		default:
			Set(d, path, n)
		}
	}
	for path, v := range u.Push {
		Set(d, path, append(arrayAt(d, path), Normalize(v)))
	}
	for path, v := range u.Prepend {
		Set(d, path, append([]any{Normalize(v)}, arrayAt(d, path)...))
	}
	for path, v := range u.AddToSet {
		v = Normalize(v)
		arr := arrayAt(d, path)
		present := false
		for _, item := range arr {
			if Equal(item, v) {
				present = true
				break
			}
		}
		if !present {
			arr = append(arr, v)
		}
		Set(d, path, arr)
	}
	for path, v := range u.Pull {
		v = Normalize(v)
		arr := arrayAt(d, path)
		kept := make([]any, 0, len(arr))
		for _, item := range arr {
			if !Equal(item, v) {
				kept = append(kept, item)
			}
		}
		Set(d, path, kept)
	}
}

func arrayAt(d Document, path string) []any {
	v, _ := Get(d, path)
	arr, _ := v.([]any)
	out := make([]any, len(arr))
	copy(out, arr)
	return out
}
