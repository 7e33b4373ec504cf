package keyvalue

// T is a key/value pair attached to a diagnostic message.
type T struct {
	Key   string
	Value string
}

// KV is a convenience constructor for T.
func KV(key, value string) T {
	return T{Key: key, Value: value}
}
