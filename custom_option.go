package esdecoder

type CustomOption = any
type CustomOptions []CustomOption

func GetCustomOption[T any](in CustomOptions) (T, bool) {
	for _, item := range in {
		v, ok := item.(T)
		if ok {
			return v, ok
		}
	}

	var zeroValue T
	return zeroValue, false
}

// DictionaryItems are passed as-is to the decoder implementation when given
// as a custom option (for libav: the options dictionary of the codec).
type DictionaryItem struct {
	Key   string
	Value string
}
type DictionaryItems []DictionaryItem
