package luatable

// Normalize re-bases every list in v to index 1, at every nesting level.
// Map keys are left as they are and scalars pass through, so applying
// Normalize to its own output changes nothing.
func Normalize(v Value) Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = Normalize(item)
		}
		return ListFrom(1, items...)

	case KindMap:
		entries := make([]Entry, len(v.entries))
		for i, e := range v.entries {
			entries[i] = Entry{Key: e.Key, Value: Normalize(e.Value)}
		}
		return Map(entries...)

	default:
		return v
	}
}
