package utils

import (
	"strconv"
)

// StringToInt converts string to int, returns def if empty, invalid or below 1
func StringToInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil || i < 1 {
		return def
	}
	return i
}
