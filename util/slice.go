package util

// Contains reports whether val is an element of src.
func Contains(src []string, val string) bool {
	for _, v := range src {
		if v == val {
			return true
		}
	}
	return false
}

// AppendUnique appends val to src unless it is already present.
func AppendUnique(src []string, val string) []string {
	if Contains(src, val) {
		return src
	}
	return append(src, val)
}
